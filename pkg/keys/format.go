package keys

import (
	"fmt"
	"strings"
)

// Format names an external key file format.
type Format string

const (
	// FormatJSON is a JSON document carrying a hex private_key field.
	FormatJSON Format = "json"
	// FormatRaw is a file of raw key bytes. It is recognized but not importable.
	FormatRaw Format = "raw"
)

// ParseFormat maps a format name to a Format. An empty name selects FormatJSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatRaw:
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("%w: %q (must be 'json' or 'raw')", ErrUnsupportedFormat, name)
	}
}

func (f Format) String() string {
	return string(f)
}
