// Package qr renders ticket tokens as QR symbols and reads them back from
// camera frames.  The payload is the token string exactly as issued.
package qr

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrNotFound reports a frame without a readable QR symbol.  It is the
// normal result for most camera frames.
var ErrNotFound = errors.New("qr: no symbol in frame")

// Encode returns a PNG of token, size pixels square.
func Encode(token string, size int) ([]byte, error) {
	q, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return q.PNG(size)
}

// Image returns token as an image, size pixels square.
func Image(token string, size int) (image.Image, error) {
	q, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return q.Image(size), nil
}

// Terminal renders token with half-block characters for a terminal.
func Terminal(token string) (string, error) {
	q, err := qrcode.New(token, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	return q.ToSmallString(false), nil
}

// Decoder finds and decodes one QR symbol per frame.  A Decoder is not
// safe for concurrent use; the scanner owns one per decode loop.
type Decoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewDecoder returns a Decoder tuned for camera frames.
func NewDecoder() *Decoder {
	return &Decoder{
		reader: zxqr.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns the text of the QR symbol in img, or ErrNotFound.
func (d *Decoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qr: binarize: %w", err)
	}
	res, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		var nf gozxing.NotFoundException
		if errors.As(err, &nf) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("qr: decode: %w", err)
	}
	return res.GetText(), nil
}
