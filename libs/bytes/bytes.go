package bytes

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a byte slice that marshals to/from JSON as uppercase hex,
// matching the header_hash / block_hash wire format used throughout the
// light-client core and the /v1/status response.
type HexBytes []byte

// MarshalJSON renders the byte slice as an uppercase hex string.
func (bz HexBytes) MarshalJSON() ([]byte, error) {
	s := strings.ToUpper(hex.EncodeToString(bz))
	jbz := make([]byte, len(s)+2)
	jbz[0] = '"'
	copy(jbz[1:], s)
	jbz[len(jbz)-1] = '"'
	return jbz, nil
}

// UnmarshalJSON parses a hex string produced by MarshalJSON.
func (bz *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid hex string: %s", data)
	}
	bz2, err := hex.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*bz = bz2
	return nil
}

// Bytes returns the underlying byte slice.
func (bz HexBytes) Bytes() []byte {
	return bz
}

// String renders the full uppercase hex encoding.
func (bz HexBytes) String() string {
	return strings.ToUpper(hex.EncodeToString(bz))
}

// Equal reports whether two HexBytes carry the same bytes.
func (bz HexBytes) Equal(other HexBytes) bool {
	if len(bz) != len(other) {
		return false
	}
	for i := range bz {
		if bz[i] != other[i] {
			return false
		}
	}
	return true
}

// Format writes the hex-encoded byte slice; "%p" still prints the slice's
// backing-array address, matching fmt's own convention for pointer-like types.
func (bz HexBytes) Format(s fmt.State, verb rune) {
	switch verb {
	case 'p':
		_, _ = s.Write([]byte(fmt.Sprintf("%p", []byte(bz))))
	default:
		_, _ = s.Write([]byte(fmt.Sprintf("%X", []byte(bz))))
	}
}
