package handler

import "storegate/internal/merchant/models"

// MerchantResponse is the public view of a merchant. Payment secrets are never serialized.
type MerchantResponse struct {
	GLN                      string  `json:"gln"`
	ChainID                  string  `json:"chainId"`
	Name                     string  `json:"name"`
	OneClickDefaultMaxAmount float64 `json:"oneClickDefaultMaxAmount"`
	HasPayexCredentials      bool    `json:"hasPayexCredentials"`
	AeraStoreCode            string  `json:"aeraStoreCode,omitempty"`
	PaymentValid             bool    `json:"paymentValid"`
}

type MerchantListResponse struct {
	Merchants []MerchantResponse `json:"merchants"`
	Count     int                `json:"count"`
}

type InvalidateResponse struct {
	ChainID     string `json:"chainId"`
	Invalidated bool   `json:"invalidated"`
}

func toMerchantResponse(m *models.Merchant) *MerchantResponse {
	return &MerchantResponse{
		GLN:                      m.GLN,
		ChainID:                  m.ChainID,
		Name:                     m.Name,
		OneClickDefaultMaxAmount: m.OneClickDefaultMaxAmount,
		HasPayexCredentials:      m.HasPayexCredentials(),
		AeraStoreCode:            m.AeraStoreCode,
		PaymentValid:             m.PaymentValid(),
	}
}

func toMerchantListResponse(merchants []models.Merchant) *MerchantListResponse {
	out := make([]MerchantResponse, 0, len(merchants))
	for i := range merchants {
		out = append(out, *toMerchantResponse(&merchants[i]))
	}
	return &MerchantListResponse{Merchants: out, Count: len(out)}
}
