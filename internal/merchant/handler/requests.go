package handler

import (
	s "storegate/pkg/string"
	"storegate/pkg/validation"
)

type MerchantRequest struct {
	GLN string `validate:"required,gln"`
}

func (r *MerchantRequest) Normalize() {
	s.TrimStrings(&r.GLN)
}

func (r *MerchantRequest) Validate() error {
	return validation.Validate(r)
}

type ChainRequest struct {
	ChainID string `validate:"required,numeric,max=10"`
}

func (r *ChainRequest) Normalize() {
	s.TrimStrings(&r.ChainID)
}

func (r *ChainRequest) Validate() error {
	return validation.Validate(r)
}
