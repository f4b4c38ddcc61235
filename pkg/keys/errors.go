package keys

import "fmt"

var (
	// ErrIO reports a key file that cannot be read or written.
	ErrIO = fmt.Errorf("key file i/o failed")
	// ErrParse reports input that is not a well-formed key document or encoding.
	ErrParse = fmt.Errorf("malformed key document")
	// ErrFormat reports a private key that is missing, not 32 bytes, or not a valid scalar.
	ErrFormat = fmt.Errorf("invalid private key")
	// ErrUnsupportedFormat reports a key format the import operation does not implement.
	ErrUnsupportedFormat = fmt.Errorf("unsupported key format")
	// ErrInvalidArgument reports a missing input or output path.
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	// ErrKeyDestroyed is returned when signing with a key after Destroy.
	ErrKeyDestroyed = fmt.Errorf("key material destroyed")
)
