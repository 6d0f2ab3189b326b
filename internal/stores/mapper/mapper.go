// Package mapper converts raw store documents from the search index into models.Store.
package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"storegate/internal/stores/models"
)

// ToStore maps a single store document. A document without a store id cannot be mapped.
func ToStore(raw json.RawMessage) (models.Store, error) {
	if isNull(raw) {
		return models.Store{}, fmt.Errorf("store is null or undefined")
	}
	var doc storeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Store{}, fmt.Errorf("could not map store (%s): %w", peekStoreID(raw), err)
	}
	if doc.StoreID == "" {
		return models.Store{}, fmt.Errorf("could not map store: missing storeId")
	}

	store, err := doc.toModel()
	if err != nil {
		return models.Store{}, fmt.Errorf("could not map store (%s): %w", doc.StoreID, err)
	}
	return store, nil
}

// ToStores maps every document. The first failure aborts the batch.
func ToStores(raws []json.RawMessage) ([]models.Store, error) {
	stores := make([]models.Store, 0, len(raws))
	for _, raw := range raws {
		s, err := ToStore(raw)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

// ToClosePickupPoints maps the click and collect distance list.
func ToClosePickupPoints(raw []byte) ([]models.ClosePickupPoint, error) {
	var docs []struct {
		GLN           flexString `json:"gln"`
		SortIndex     int        `json:"sorteringsNummer"`
		RangeInMeters float64    `json:"avstandIMeter"`
	}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode close pickup points: %w", err)
	}
	points := make([]models.ClosePickupPoint, 0, len(docs))
	for _, d := range docs {
		points = append(points, models.ClosePickupPoint{
			GLN:           string(d.GLN),
			SortIndex:     d.SortIndex,
			RangeInMeters: d.RangeInMeters,
		})
	}
	return points, nil
}

// Bags returns the bag prices of a store document and whether the document lists any.
func Bags(raw json.RawMessage) ([]models.Bag, bool, error) {
	var doc struct {
		SpecialGoods *struct {
			Bags json.RawMessage `json:"bags"`
		} `json:"specialGoods"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode special goods: %w", err)
	}
	if doc.SpecialGoods == nil || isNull(doc.SpecialGoods.Bags) {
		return nil, false, nil
	}
	bags, err := mapBags(doc.SpecialGoods.Bags)
	if err != nil {
		return nil, false, err
	}
	return bags, true, nil
}

type storeDoc struct {
	Chain                    flexString       `json:"chain"`
	StoreID                  flexString       `json:"storeId"`
	Name                     string           `json:"name"`
	City                     string           `json:"city"`
	PostalCode               flexString       `json:"postalCode"`
	Address                  string           `json:"address"`
	County                   string           `json:"county"`
	Municipality             string           `json:"municipality"`
	PhoneNumber              string           `json:"phonenumber"`
	Location                 *models.Location `json:"location"`
	Latitude                 float64          `json:"latitude"`
	Longitude                float64          `json:"longitude"`
	PickupPointDescription   string           `json:"pickupPointDescription"`
	HomeDelivery             json.RawMessage  `json:"homeDelivery"`
	AlcoholGrant             json.RawMessage  `json:"alcoholGrant"`
	AlcoholSlots             json.RawMessage  `json:"alcoholSlots"`
	BookingHorizon           *int             `json:"bookingHorizon"`
	DeliveryMinimumSum       *float64         `json:"deliveryMinimumSum"`
	HasValidHomeDeliveryData bool             `json:"hasValidHomeDeliveryData"`
	Whitelist                bool             `json:"whitelist"`
	PickupMinimumSum         *float64         `json:"pickupMinimumSum"`
	PickupSlots              json.RawMessage  `json:"pickupSlots"`
	SpecialGoods             json.RawMessage  `json:"specialGoods"`
	OpeningHours             json.RawMessage  `json:"openinghours"`
}

func (d storeDoc) toModel() (models.Store, error) {
	alcohol, err := mapAlcoholGrant(d.AlcoholGrant)
	if err != nil {
		return models.Store{}, err
	}
	slots, err := mapPickupSlots(d.PickupSlots)
	if err != nil {
		return models.Store{}, err
	}
	goods, err := mapSpecialGoods(d.SpecialGoods)
	if err != nil {
		return models.Store{}, err
	}

	location := models.Location{Lat: d.Latitude, Lon: d.Longitude}
	if d.Location != nil {
		location = *d.Location
	}

	return models.Store{
		ChainID:                  string(d.Chain),
		GLN:                      string(d.StoreID),
		PickupGLN:                string(d.StoreID),
		Name:                     d.Name,
		City:                     d.City,
		PostalCode:               string(d.PostalCode),
		Address:                  d.Address,
		County:                   d.County,
		Municipality:             d.Municipality,
		PhoneNumber:              d.PhoneNumber,
		Location:                 location,
		PickupPointDescription:   d.PickupPointDescription,
		HomeDeliveryProviders:    nonNull(d.HomeDelivery),
		AlcoholGrant:             alcohol,
		AlcoholSlots:             nonNull(d.AlcoholSlots),
		BookingHorizon:           d.BookingHorizon,
		DeliveryMinimumSum:       d.DeliveryMinimumSum,
		HasValidHomeDeliveryData: d.HasValidHomeDeliveryData,
		Whitelist:                d.Whitelist,
		PickupMinimumSum:         d.PickupMinimumSum,
		PickupSlots:              slots,
		SpecialGoods:             goods,
		OpeningHours:             nonNull(d.OpeningHours),
	}, nil
}

func mapAlcoholGrant(raw json.RawMessage) ([]models.AlcoholGrant, error) {
	var areas []struct {
		Municipality *struct {
			ID   flexString `json:"id"`
			Name string     `json:"name"`
		} `json:"municipality"`
		ZipCodes []flexString `json:"zipCodes"`
	}
	if err := decodeArray(raw, &areas, "alcoholGrant"); err != nil {
		return nil, err
	}
	out := make([]models.AlcoholGrant, 0, len(areas))
	for _, a := range areas {
		grant := models.AlcoholGrant{ZipCodes: toStrings(a.ZipCodes)}
		if a.Municipality != nil {
			grant.Municipality = &models.Municipality{ID: string(a.Municipality.ID), Name: a.Municipality.Name}
		}
		out = append(out, grant)
	}
	return out, nil
}

func mapPickupSlots(raw json.RawMessage) ([]models.StorePickupSlot, error) {
	var slots []struct {
		Capacity          int        `json:"capacity"`
		Deadline          string     `json:"deadline"`
		DeadlineCorporate string     `json:"deadlineCorporate"`
		From              string     `json:"from"`
		To                string     `json:"to"`
		HomeDelivery      bool       `json:"homeDelivery"`
		Pickup            bool       `json:"pickup"`
		ID                flexString `json:"id"`
		IsTripleTrumf     bool       `json:"isTripleTrumf"`
	}
	if err := decodeArray(raw, &slots, "pickupSlots"); err != nil {
		return nil, err
	}
	out := make([]models.StorePickupSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, models.StorePickupSlot{
			Capacity:          s.Capacity,
			Deadline:          s.Deadline,
			DeadlineCorporate: s.DeadlineCorporate,
			From:              s.From,
			To:                s.To,
			HomeDelivery:      s.HomeDelivery,
			Pickup:            s.Pickup,
			StoreWindowID:     string(s.ID),
			IsTripleTrumf:     s.IsTripleTrumf,
		})
	}
	return out, nil
}

func mapSpecialGoods(raw json.RawMessage) (models.SpecialGoods, error) {
	var goods struct {
		HomeDelivery         json.RawMessage `json:"homeDelivery"`
		HomeDeliveryFee      json.RawMessage `json:"homeDeliveryFee"`
		PickupFee            json.RawMessage `json:"pickupFee"`
		CorporatePickupFee   json.RawMessage `json:"corporatePickupFee"`
		Bags                 json.RawMessage `json:"bags"`
		CorporateDelivery    json.RawMessage `json:"corporateDelivery"`
		CorporateDeliveryFee json.RawMessage `json:"corporateDeliveryFee"`
	}
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &goods); err != nil {
			return models.SpecialGoods{}, fmt.Errorf("specialGoods: %w", err)
		}
	}

	homeDelivery, err := deliveryWithFallback(goods.HomeDelivery, goods.HomeDeliveryFee)
	if err != nil {
		return models.SpecialGoods{}, err
	}
	corporateDelivery, err := deliveryWithFallback(goods.CorporateDelivery, goods.CorporateDeliveryFee)
	if err != nil {
		return models.SpecialGoods{}, err
	}
	pickupFee, err := mapPickupFees(goods.PickupFee)
	if err != nil {
		return models.SpecialGoods{}, err
	}
	corporatePickupFee, err := mapPickupFees(goods.CorporatePickupFee)
	if err != nil {
		return models.SpecialGoods{}, err
	}
	bags, err := mapBags(goods.Bags)
	if err != nil {
		return models.SpecialGoods{}, err
	}

	return models.SpecialGoods{
		HomeDelivery:       homeDelivery,
		PickupFee:          pickupFee,
		Bags:               bags,
		CorporateDelivery:  corporateDelivery,
		CorporatePickupFee: corporatePickupFee,
	}, nil
}

// deliveryWithFallback prefers zip-code grouped fees and falls back to the legacy flat
// fee list, wrapped in one group without zip codes.
func deliveryWithFallback(grouped, legacy json.RawMessage) ([]models.HomeDeliveryFeeGroup, error) {
	groups, err := mapHomeDelivery(grouped)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		return groups, nil
	}
	fees, err := mapHomeDeliveryFees(legacy)
	if err != nil {
		return nil, err
	}
	return []models.HomeDeliveryFeeGroup{{ZipCodes: []string{}, Fees: fees}}, nil
}

func mapHomeDelivery(raw json.RawMessage) ([]models.HomeDeliveryFeeGroup, error) {
	var groups []struct {
		ZipCodes []flexString    `json:"zipCodes"`
		Fees     json.RawMessage `json:"fees"`
	}
	if err := decodeArray(raw, &groups, "homeDelivery"); err != nil {
		return nil, err
	}
	out := make([]models.HomeDeliveryFeeGroup, 0, len(groups))
	for _, g := range groups {
		fees, err := mapHomeDeliveryFees(g.Fees)
		if err != nil {
			return nil, err
		}
		out = append(out, models.HomeDeliveryFeeGroup{ZipCodes: toStrings(g.ZipCodes), Fees: fees})
	}
	return out, nil
}

func mapHomeDeliveryFees(raw json.RawMessage) ([]models.HomeDeliveryFee, error) {
	var fees []struct {
		DeliveryAgent         string     `json:"deliveryAgent"`
		DeliveryDateDeviation int        `json:"deliveryDateDeviation"`
		DeliveryWindow        string     `json:"deliveryWindow"`
		EAN                   flexString `json:"ean"`
		Flexibility           int        `json:"fleksibilitetsgrad"`
		IntervalFrom          float64    `json:"intervallFrom"`
		IntervalTo            float64    `json:"intervallTo"`
		Price                 float64    `json:"price"`
		Title                 string     `json:"title"`
	}
	if err := decodeArray(raw, &fees, "homeDeliveryFee"); err != nil {
		return nil, err
	}
	out := make([]models.HomeDeliveryFee, 0, len(fees))
	for _, f := range fees {
		out = append(out, models.HomeDeliveryFee{
			DeliveryAgent:         f.DeliveryAgent,
			DeliveryDateDeviation: f.DeliveryDateDeviation,
			DeliveryWindow:        f.DeliveryWindow,
			EAN:                   string(f.EAN),
			Flexibility:           f.Flexibility,
			IntervalFrom:          f.IntervalFrom,
			IntervalTo:            f.IntervalTo,
			Price:                 f.Price,
			Title:                 f.Title,
		})
	}
	return out, nil
}

func mapPickupFees(raw json.RawMessage) ([]models.PickupFee, error) {
	var fees []struct {
		EAN          flexString `json:"ean"`
		Price        float64    `json:"price"`
		Title        string     `json:"title"`
		IntervalFrom float64    `json:"intervallFrom"`
		IntervalTo   float64    `json:"intervallTo"`
	}
	if err := decodeArray(raw, &fees, "pickupFee"); err != nil {
		return nil, err
	}
	out := make([]models.PickupFee, 0, len(fees))
	for _, f := range fees {
		out = append(out, models.PickupFee{
			EAN:          string(f.EAN),
			Price:        f.Price,
			Title:        f.Title,
			IntervalFrom: f.IntervalFrom,
			IntervalTo:   f.IntervalTo,
		})
	}
	return out, nil
}

func mapBags(raw json.RawMessage) ([]models.Bag, error) {
	var bags []struct {
		EAN   flexString `json:"ean"`
		Price float64    `json:"price"`
		Title string     `json:"title"`
		Type  string     `json:"type"`
	}
	if err := decodeArray(raw, &bags, "bags"); err != nil {
		return nil, err
	}
	out := make([]models.Bag, 0, len(bags))
	for _, b := range bags {
		out = append(out, models.Bag{EAN: string(b.EAN), Price: b.Price, Title: b.Title, Type: b.Type})
	}
	return out, nil
}

// decodeArray decodes raw into dst when it holds a JSON array. Anything else leaves dst empty.
func decodeArray(raw json.RawMessage, dst any, name string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if isNull(raw) {
		return nil
	}
	return raw
}

func toStrings(values []flexString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func peekStoreID(raw json.RawMessage) string {
	var doc struct {
		StoreID json.RawMessage `json:"storeId"`
	}
	if json.Unmarshal(raw, &doc) != nil {
		return ""
	}
	return string(bytes.Trim(doc.StoreID, `"`))
}

// flexString accepts a JSON string or number. Store ids, zip codes and EANs arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}
