package output

import (
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// RenderQR draws data as a QR code using half-height block characters.
// Nothing is written unless w is a terminal or force is set.
func RenderQR(w io.Writer, data string, force bool) error {
	if !force && !IsTerminal(w) {
		return nil
	}
	code, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encoding QR code: %w", err)
	}
	_, err = io.WriteString(w, code.ToSmallString(false))
	return err
}
