package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storegate/internal/search/query"
	str "storegate/pkg/platform/strings"
	s "storegate/pkg/string"
	"storegate/pkg/validation"
)

type StoreListRequest struct {
	ChainID           string `validate:"required,numeric,max=10"`
	Fields            []string
	MemberID          string `validate:"omitempty,max=64"`
	ValidHomeDelivery string `validate:"omitempty,oneof=true false"`
}

func newStoreListRequest(r *http.Request) *StoreListRequest {
	q := r.URL.Query()
	return &StoreListRequest{
		ChainID:           chi.URLParam(r, "chainId"),
		Fields:            str.SplitList(q.Get("fields")),
		MemberID:          q.Get("member_id"),
		ValidHomeDelivery: q.Get("valid_home_delivery"),
	}
}

func (r *StoreListRequest) Normalize() {
	s.TrimStrings(&r.ChainID, &r.MemberID, &r.ValidHomeDelivery)
}

func (r *StoreListRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	return validateFields(r.Fields)
}

func (r *StoreListRequest) validHomeDeliveryOnly() bool {
	ok, _ := strconv.ParseBool(r.ValidHomeDelivery)
	return ok
}

type StoreRequest struct {
	ChainID  string `validate:"required,numeric,max=10"`
	StoreID  string `validate:"required,gln"`
	Fields   []string
	MemberID string `validate:"omitempty,max=64"`
}

func newStoreRequest(r *http.Request) *StoreRequest {
	q := r.URL.Query()
	return &StoreRequest{
		ChainID:  chi.URLParam(r, "chainId"),
		StoreID:  chi.URLParam(r, "storeId"),
		Fields:   str.SplitList(q.Get("fields")),
		MemberID: q.Get("member_id"),
	}
}

func (r *StoreRequest) Normalize() {
	s.TrimStrings(&r.ChainID, &r.StoreID, &r.MemberID)
}

func (r *StoreRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	return validateFields(r.Fields)
}

type ClosestRequest struct {
	ChainID    string `validate:"required,numeric,max=10"`
	PostalCode string `validate:"required,postalcode"`
	Type       string `validate:"oneof=store pickup"`
}

func (r *ClosestRequest) Normalize() {
	s.TrimStrings(&r.ChainID, &r.PostalCode, &r.Type)
	if r.Type == "" {
		r.Type = "store"
	}
}

func (r *ClosestRequest) Validate() error {
	return validation.Validate(r)
}

type SearchRequest struct {
	ChainID      string `validate:"required,numeric,max=10"`
	Facets       string `validate:"max=1000"`
	Aggregations []string
	Fields       []string
	// Without names configured filters to switch off, defaults included.
	Without  []string
	MemberID string `validate:"omitempty,max=64"`
	Size     int    `validate:"min=0,max=100"`
	Page     int    `validate:"min=0"`
}

func newSearchRequest(r *http.Request) (*SearchRequest, error) {
	q := r.URL.Query()
	req := &SearchRequest{
		ChainID:      chi.URLParam(r, "chainId"),
		Facets:       q.Get("facets"),
		Aggregations: str.SplitList(q.Get("aggs")),
		Fields:       str.SplitList(q.Get("fields")),
		Without:      str.SplitList(q.Get("without")),
		MemberID:     q.Get("member_id"),
	}
	var err error
	if req.Size, err = intParam(q.Get("size")); err != nil {
		return nil, err
	}
	if req.Page, err = intParam(q.Get("page")); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *SearchRequest) Normalize() {
	s.TrimStrings(&r.ChainID, &r.Facets, &r.MemberID)
}

func (r *SearchRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if err := validation.CheckSliceCount("without", len(r.Without), validation.MaxFields); err != nil {
		return err
	}
	return validateFields(r.Fields)
}

// filters maps the switched-off filter names to removals. Nil when none are given.
func (r *SearchRequest) filters() map[string]query.Value {
	if len(r.Without) == 0 {
		return nil
	}
	out := make(map[string]query.Value, len(r.Without))
	for _, name := range r.Without {
		out[name] = query.Removed
	}
	return out
}

func validateFields(fields []string) error {
	if err := validation.CheckSliceCount("fields", len(fields), validation.MaxFields); err != nil {
		return err
	}
	return validation.CheckEachStringLength("field", fields, validation.MaxFieldLength)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
