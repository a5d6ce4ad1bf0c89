package ticket

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const codeIDLength = 8

// Code formats the ticket code printed on badges:
// SLUG-FIRST8OFID, both parts upper-cased.
func Code(eventSlug, registrationID string) string {
	id := registrationID
	if len(id) > codeIDLength {
		id = id[:codeIDLength]
	}
	return strings.ToUpper(eventSlug) + "-" + strings.ToUpper(id)
}

// QRIssuer renders ticket codes as PNG QR codes embedded in a data URL.
type QRIssuer struct {
	size int
}

func NewQRIssuer(size int) *QRIssuer {
	if size <= 0 {
		size = 256
	}
	return &QRIssuer{size: size}
}

func (q *QRIssuer) Issue(_ context.Context, code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, q.size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
