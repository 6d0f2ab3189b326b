package validation

import (
	"fmt"

	dErrors "storegate/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxProxyBodySize bounds request bodies forwarded to backends (1 MB).
	MaxProxyBodySize = 1 << 20
)

// Query parameter limits
const (
	// MaxFields is the maximum number of projected fields per store query.
	MaxFields = 50

	// MaxFieldLength is the maximum length of a single projected field name.
	MaxFieldLength = 100
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice does not exceed the maximum length.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}
