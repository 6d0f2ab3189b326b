package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "storegate/pkg/domain-errors"
)

type lookupRequest struct {
	ChainID    string `validate:"required,numeric"`
	GLN        string `validate:"omitempty,gln"`
	PostalCode string `validate:"omitempty,postalcode"`
	Type       string `validate:"omitempty,oneof=store pickup"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     lookupRequest
		wantErr string
	}{
		{name: "valid", req: lookupRequest{ChainID: "1300", GLN: "7080001150488", PostalCode: "0150", Type: "pickup"}},
		{name: "missing chain", req: lookupRequest{}, wantErr: "chain_id is required"},
		{name: "non numeric chain", req: lookupRequest{ChainID: "abc"}, wantErr: "chain_id must be numeric"},
		{name: "short gln", req: lookupRequest{ChainID: "1300", GLN: "708"}, wantErr: "gln must be a 13 digit GLN"},
		{name: "bad postal code", req: lookupRequest{ChainID: "1300", PostalCode: "01500"}, wantErr: "postal_code must be a 4 digit postal code"},
		{name: "unknown type", req: lookupRequest{ChainID: "1300", Type: "depot"}, wantErr: "type must be one of [store pickup]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument))
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
