package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentValid(t *testing.T) {
	tests := []struct {
		name     string
		merchant Merchant
		want     bool
	}{
		{"payex credentials", Merchant{AccountNumber: "123", EncryptionKey: "key"}, true},
		{"alternate provider only", Merchant{AeraStoreCode: "A-17"}, true},
		{"account without key", Merchant{AccountNumber: "123"}, false},
		{"key without account", Merchant{EncryptionKey: "key"}, false},
		{"nothing configured", Merchant{Name: "Kiwi Majorstuen"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.merchant.PaymentValid())
		})
	}
}

func TestFilterPaymentValid(t *testing.T) {
	in := []Merchant{
		{GLN: "1", AccountNumber: "a", EncryptionKey: "k"},
		{GLN: "2"},
		{GLN: "3", AeraStoreCode: "A-3"},
	}
	got := FilterPaymentValid(in)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].GLN)
	assert.Equal(t, "3", got[1].GLN)
}

func TestToMerchant_UnwrapsEnvelopes(t *testing.T) {
	e, err := ParseEntity([]byte(`{
		"PartitionKey": {"_": "7080001150488"},
		"RowKey": {"_": "7080001150488"},
		"ChainId": {"_": "1300"},
		"AccountNumber": {"_": "77001"},
		"EncryptionKey": {"_": "secret"},
		"Name": {"_": "Meny Ullevål"},
		"OneClickDefaultMaxAmount": {"_": 1500},
		"ZoopitAccessKey": {"_": null},
		"AeraStoreCode": {"_": "A-1"}
	}`))
	require.NoError(t, err)

	m, err := ToMerchant(e)
	require.NoError(t, err)
	assert.Equal(t, Merchant{
		GLN:                      "7080001150488",
		ChainID:                  "1300",
		AccountNumber:            "77001",
		EncryptionKey:            "secret",
		Name:                     "Meny Ullevål",
		OneClickDefaultMaxAmount: 1500,
		AeraStoreCode:            "A-1",
	}, m)
}

func TestToMerchant_BareProperties(t *testing.T) {
	e, err := ParseEntity([]byte(`{
		"RowKey": "7080001000011",
		"ChainId": "1100",
		"Name": "Kiwi",
		"OneClickDefaultMaxAmount": "2500",
		"OneClickDefaultMaxAmount@odata.type": "Edm.Int64"
	}`))
	require.NoError(t, err)

	m, err := ToMerchant(e)
	require.NoError(t, err)
	assert.Equal(t, "7080001000011", m.GLN)
	assert.Equal(t, "1100", m.ChainID)
	assert.Equal(t, float64(2500), m.OneClickDefaultMaxAmount)
	assert.False(t, m.PaymentValid())
}

func TestToMerchant_RequiresRowKey(t *testing.T) {
	_, err := ToMerchant(Entity{"ChainId": "1300"})
	assert.Error(t, err)

	_, err = ToMerchant(Entity{"RowKey": map[string]any{"_": nil}})
	assert.Error(t, err)
}

func TestToMerchant_RejectsUnexpectedTypes(t *testing.T) {
	_, err := ToMerchant(Entity{"RowKey": "1", "Name": []any{"x"}})
	assert.Error(t, err)

	_, err = ToMerchant(Entity{"RowKey": "1", "OneClickDefaultMaxAmount": "lots"})
	assert.Error(t, err)
}
