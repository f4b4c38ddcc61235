package keys

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// keyDocument is the at-rest JSON layout. Unknown fields are ignored.
type keyDocument struct {
	PrivateKey string `json:"private_key"`
}

// Decode reads a JSON key document such as {"private_key": "0x2a35..."}.
// Malformed JSON fails with ErrParse. A missing, non-hex, wrongly sized or
// out-of-range key fails with ErrFormat.
func Decode(data []byte) (*KeyMaterial, error) {
	var doc keyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: private_key must be a hex string", ErrFormat)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if doc.PrivateKey == "" {
		return nil, fmt.Errorf("%w: private_key is missing", ErrFormat)
	}

	hexKey := strings.TrimPrefix(strings.TrimPrefix(doc.PrivateKey, "0x"), "0X")
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private_key is not hex", ErrFormat)
	}
	defer zero(raw)

	return New(raw)
}

// EncodePortable returns the standard base64 encoding of the 32 raw key bytes.
func EncodePortable(k *KeyMaterial) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(Size))
	base64.StdEncoding.Encode(out, k.scalar[:])
	return out
}

// DecodePortable reverses EncodePortable. Surrounding whitespace is ignored.
func DecodePortable(data []byte) (*KeyMaterial, error) {
	data = bytes.TrimSpace(data)
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	defer zero(raw)

	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return New(raw[:n])
}

// LoadFromPath reads and decodes a JSON key document.
func LoadFromPath(path string) (*KeyMaterial, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer zero(data)

	return Decode(data)
}

// LoadPortableFromPath reads a file written by Import.
func LoadPortableFromPath(path string) (*KeyMaterial, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer zero(data)

	return DecodePortable(data)
}

// Load reads either a JSON key document or an Import output file.
// Files whose first non-space byte is '{' are treated as JSON.
func Load(path string) (*KeyMaterial, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer zero(data)

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return Decode(data)
	}
	return DecodePortable(data)
}

func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	return data, nil
}
