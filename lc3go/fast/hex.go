package fast

import "fmt"

// HexU16 renders a word in hex in logs and JSON.
type HexU16 uint16

func (v HexU16) String() string {
	return fmt.Sprintf("%04x", uint16(v))
}

func (v HexU16) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
