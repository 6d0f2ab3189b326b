package handler

import (
	"encoding/json"

	"storegate/internal/stores/models"
)

type StoreListResponse struct {
	Stores []json.RawMessage `json:"stores"`
	Count  int               `json:"count"`
}

type StoreRecordListResponse struct {
	Stores []models.Store `json:"stores"`
	Count  int            `json:"count"`
}

type ClosestResponse struct {
	PostalCode string                    `json:"postalCode"`
	Type       string                    `json:"type"`
	Points     []models.ClosePickupPoint `json:"points"`
}

type BagFeesResponse struct {
	StoreID string       `json:"storeId"`
	Bags    []models.Bag `json:"bags"`
}

func toStoreListResponse(stores []json.RawMessage) *StoreListResponse {
	if stores == nil {
		stores = []json.RawMessage{}
	}
	return &StoreListResponse{Stores: stores, Count: len(stores)}
}

func toStoreRecordListResponse(stores []models.Store) *StoreRecordListResponse {
	if stores == nil {
		stores = []models.Store{}
	}
	return &StoreRecordListResponse{Stores: stores, Count: len(stores)}
}
