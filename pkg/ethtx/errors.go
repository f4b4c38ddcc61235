package ethtx

import "fmt"

var (
	// ErrEncoding reports descriptor fields that cannot be encoded, such as
	// negative or wider than 256-bit integers, or an invalid chain id.
	ErrEncoding = fmt.Errorf("transaction encoding failed")
	// ErrParse reports request params that are not well-formed JSON.
	ErrParse = fmt.Errorf("malformed transaction params")
	// ErrInvalidField reports request params with a missing or out-of-range field.
	ErrInvalidField = fmt.Errorf("invalid transaction field")
)
