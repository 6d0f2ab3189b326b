package models

import "encoding/json"

// Store status codes returned alongside an inactive status.
const (
	StatusWhitelistViolation = 98
	StatusInvalidPayment     = 99
	StatusStoreNotFound      = 100
	StatusUnexpectedFailure  = 101
)

// Store is the normalized view of a store document from the search index.
// Collections are never nil so they always serialize as arrays.
type Store struct {
	ChainID                  string            `json:"chainId"`
	GLN                      string            `json:"gln"`
	PickupGLN                string            `json:"pickupGln"`
	Name                     string            `json:"name"`
	City                     string            `json:"city"`
	PostalCode               string            `json:"postalCode"`
	Address                  string            `json:"address"`
	County                   string            `json:"county"`
	Municipality             string            `json:"municipality"`
	PhoneNumber              string            `json:"phoneNumber"`
	Location                 Location          `json:"location"`
	PickupPointDescription   string            `json:"pickupPointDescription"`
	HomeDeliveryProviders    json.RawMessage   `json:"homeDeliveryProviders,omitempty"`
	AlcoholGrant             []AlcoholGrant    `json:"alcoholGrant"`
	AlcoholSlots             json.RawMessage   `json:"alcoholSlots,omitempty"`
	BookingHorizon           *int              `json:"bookingHorizon,omitempty"`
	DeliveryMinimumSum       *float64          `json:"deliveryMinimumSum,omitempty"`
	HasValidHomeDeliveryData bool              `json:"hasValidHomeDeliveryData"`
	Whitelist                bool              `json:"whitelist"`
	PickupMinimumSum         *float64          `json:"pickupMinimumSum,omitempty"`
	PickupSlots              []StorePickupSlot `json:"pickupSlots"`
	SpecialGoods             SpecialGoods      `json:"specialGoods"`
	OpeningHours             json.RawMessage   `json:"openinghours,omitempty"`
}

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Municipality struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlcoholGrant is an area where the store may deliver alcohol.
type AlcoholGrant struct {
	Municipality *Municipality `json:"municipality,omitempty"`
	ZipCodes     []string      `json:"zipCodes"`
}

type StorePickupSlot struct {
	Capacity          int    `json:"capacity"`
	Deadline          string `json:"deadline"`
	DeadlineCorporate string `json:"deadlineCorporate,omitempty"`
	From              string `json:"from"`
	To                string `json:"to"`
	HomeDelivery      bool   `json:"homeDelivery"`
	Pickup            bool   `json:"pickup"`
	StoreWindowID     string `json:"storeWindowId"`
	IsTripleTrumf     bool   `json:"isTripleTrumf"`
}

// SpecialGoods holds the fee tables and bag prices of a store.
type SpecialGoods struct {
	HomeDelivery       []HomeDeliveryFeeGroup `json:"homeDelivery"`
	PickupFee          []PickupFee            `json:"pickupFee"`
	Bags               []Bag                  `json:"bags"`
	CorporateDelivery  []HomeDeliveryFeeGroup `json:"corporateDelivery"`
	CorporatePickupFee []PickupFee            `json:"corporatePickupFee"`
}

type Bag struct {
	EAN   string  `json:"ean"`
	Price float64 `json:"price"`
	Title string  `json:"title"`
	Type  string  `json:"type"`
}

type PickupFee struct {
	EAN          string  `json:"ean"`
	Price        float64 `json:"price"`
	Title        string  `json:"title"`
	IntervalFrom float64 `json:"intervallFrom"`
	IntervalTo   float64 `json:"intervallTo"`
}

// HomeDeliveryFeeGroup applies its fees to the listed zip codes. An empty list
// means the fees apply everywhere the store delivers.
type HomeDeliveryFeeGroup struct {
	ZipCodes []string          `json:"zipCodes"`
	Fees     []HomeDeliveryFee `json:"fees"`
}

type HomeDeliveryFee struct {
	DeliveryAgent         string  `json:"deliveryAgent"`
	DeliveryDateDeviation int     `json:"deliveryDateDeviation"`
	DeliveryWindow        string  `json:"deliveryWindow"`
	EAN                   string  `json:"ean"`
	Flexibility           int     `json:"flexibility"`
	IntervalFrom          float64 `json:"intervallFrom"`
	IntervalTo            float64 `json:"intervallTo"`
	Price                 float64 `json:"price"`
	Title                 string  `json:"title"`
}

// ClosePickupPoint is a store or pickup point near a postal code.
type ClosePickupPoint struct {
	GLN           string  `json:"gln"`
	SortIndex     int     `json:"sortIndex"`
	RangeInMeters float64 `json:"rangeInMeters"`
}

// Status tells whether a store can currently take orders.
type Status struct {
	IsActive  bool `json:"isActive"`
	ErrorCode int  `json:"errorCode,omitempty"`
}

func Active() Status {
	return Status{IsActive: true}
}

func Inactive(code int) Status {
	return Status{IsActive: false, ErrorCode: code}
}

// Whitelisting is the projection used to decide store access for a member.
type Whitelisting struct {
	Whitelist          bool     `json:"whitelist"`
	WhitelistedMembers []string `json:"whitelistedMembers"`
}

// Allows reports whether memberID may use the store.
func (w Whitelisting) Allows(memberID string) bool {
	if !w.Whitelist {
		return true
	}
	if memberID == "" {
		return false
	}
	for _, m := range w.WhitelistedMembers {
		if m == memberID {
			return true
		}
	}
	return false
}
