// Package access holds the card identifier model and the scan event
// queue that bridges the authentication entry point to the network
// loop.
package access

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// CardID is the byte sequence identifying a scanned access card.
// Equality is byte-wise and exact; the wire format, not this type,
// dictates the length (4 bytes in observed terminal traffic).
type CardID []byte

// Equal reports exact byte-wise equality. Prefix matches do not count.
func (c CardID) Equal(other CardID) bool {
	return bytes.Equal(c, other)
}

// String renders the card in the colon-delimited hex form used by
// readers, e.g. "40:61:81:80".
func (c CardID) String() string {
	parts := make([]string, len(c))
	for i, b := range c {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}

// ParseCardID parses a colon-delimited hexadecimal byte string such as
// "40:61:81:80" or "56:bb:28:c5".
func ParseCardID(raw string) (CardID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("parse card id: empty input")
	}
	parts := strings.Split(raw, ":")
	cid := make(CardID, 0, len(parts))
	for _, part := range parts {
		b, err := strconv.ParseUint(strings.TrimSpace(part), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("parse card id %q: byte %q: %w", raw, part, err)
		}
		cid = append(cid, byte(b))
	}
	return cid, nil
}
