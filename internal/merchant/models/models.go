package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Merchant holds the payment configuration of one store, keyed by its GLN.
type Merchant struct {
	GLN                      string  `json:"gln"`
	ChainID                  string  `json:"chainId"`
	AccountNumber            string  `json:"accountNumber,omitempty"`
	EncryptionKey            string  `json:"encryptionKey,omitempty"`
	Name                     string  `json:"name"`
	OneClickDefaultMaxAmount float64 `json:"oneClickDefaultMaxAmount,omitempty"`
	ZoopitAccessKey          string  `json:"zoopitAccessKey,omitempty"`
	AeraStoreCode            string  `json:"aeraStoreCode,omitempty"`
}

// HasPayexCredentials reports whether both the account number and encryption key are present.
func (m Merchant) HasPayexCredentials() bool {
	return m.AccountNumber != "" && m.EncryptionKey != ""
}

// HasAlternateProvider reports whether the merchant is configured for the alternate provider.
func (m Merchant) HasAlternateProvider() bool {
	return m.AeraStoreCode != ""
}

// PaymentValid reports whether the merchant can take payments through either provider.
func (m Merchant) PaymentValid() bool {
	return m.HasPayexCredentials() || m.HasAlternateProvider()
}

// FilterPaymentValid returns the merchants that satisfy PaymentValid, preserving order.
func FilterPaymentValid(merchants []Merchant) []Merchant {
	valid := make([]Merchant, 0, len(merchants))
	for _, m := range merchants {
		if m.PaymentValid() {
			valid = append(valid, m)
		}
	}
	return valid
}

// Entity is a raw row from the durable merchant table. Property values arrive either
// bare or wrapped in a {"_": value} envelope depending on the table client.
type Entity map[string]any

// Entity property names.
const (
	PropChainID                  = "ChainId"
	PropRowKey                   = "RowKey"
	PropAccountNumber            = "AccountNumber"
	PropEncryptionKey            = "EncryptionKey"
	PropName                     = "Name"
	PropOneClickDefaultMaxAmount = "OneClickDefaultMaxAmount"
	PropZoopitAccessKey          = "ZoopitAccessKey"
	PropAeraStoreCode            = "AeraStoreCode"
)

// ParseEntity decodes a JSON-serialized table row.
func ParseEntity(data []byte) (Entity, error) {
	var e Entity
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode merchant entity: %w", err)
	}
	return e, nil
}

// ToMerchant converts a table row into a Merchant. RowKey is required; every other
// property is optional and maps to its zero value when absent or null.
func ToMerchant(e Entity) (Merchant, error) {
	gln, err := e.stringProp(PropRowKey)
	if err != nil {
		return Merchant{}, err
	}
	if gln == "" {
		return Merchant{}, fmt.Errorf("merchant entity: %s is required", PropRowKey)
	}

	m := Merchant{GLN: gln}
	fields := []struct {
		prop string
		dst  *string
	}{
		{PropChainID, &m.ChainID},
		{PropAccountNumber, &m.AccountNumber},
		{PropEncryptionKey, &m.EncryptionKey},
		{PropName, &m.Name},
		{PropZoopitAccessKey, &m.ZoopitAccessKey},
		{PropAeraStoreCode, &m.AeraStoreCode},
	}
	for _, f := range fields {
		v, err := e.stringProp(f.prop)
		if err != nil {
			return Merchant{}, fmt.Errorf("merchant %s: %w", gln, err)
		}
		*f.dst = v
	}

	amount, err := e.numberProp(PropOneClickDefaultMaxAmount)
	if err != nil {
		return Merchant{}, fmt.Errorf("merchant %s: %w", gln, err)
	}
	m.OneClickDefaultMaxAmount = amount
	return m, nil
}

// unwrap strips the {"_": value} envelope when present.
func unwrap(v any) any {
	if env, ok := v.(map[string]any); ok {
		if inner, ok := env["_"]; ok {
			return inner
		}
	}
	return v
}

func (e Entity) stringProp(name string) (string, error) {
	raw, ok := e[name]
	if !ok {
		return "", nil
	}
	switch v := unwrap(raw).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("property %s: unexpected type %T", name, v)
	}
}

func (e Entity) numberProp(name string) (float64, error) {
	raw, ok := e[name]
	if !ok {
		return 0, nil
	}
	switch v := unwrap(raw).(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		// Edm.Int64 values are serialized as strings.
		if v == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("property %s: %w", name, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("property %s: unexpected type %T", name, v)
	}
}
