package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ChainID":    "chain_id",
		"PostalCode": "postal_code",
		"GLN":        "gln",
		"memberId":   "member_id",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToSnakeCase(in), in)
	}
}

func TestTrimStrings(t *testing.T) {
	a, b := " 1300 ", "0150\n"
	TrimStrings(&a, &b)
	assert.Equal(t, "1300", a)
	assert.Equal(t, "0150", b)
}
