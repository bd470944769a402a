// Package tickets turns a registration identifier into the scannable ticket
// image embedded in confirmation emails and scanned at the door.
package tickets

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Size is the rendered QR image edge length in pixels. Presentation only;
// the encoded payload is the load-bearing part.
const Size = 256

// Encode renders a PNG QR code whose payload is exactly the identifier
// string. It is deterministic and has no side effects.
func Encode(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("encode ticket: empty identifier")
	}
	png, err := qrcode.Encode(id, qrcode.Medium, Size)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return png, nil
}
