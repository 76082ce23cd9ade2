// Package qrcode renders attendance payloads as PNG data URIs.
package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Encoder renders payloads at a fixed size and recovery level.
type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewEncoder returns an encoder producing size x size images. Non-positive sizes use 256.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = 256
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// PNG encodes payload as a PNG image.
func (e *Encoder) PNG(payload string) ([]byte, error) {
	png, err := goqrcode.Encode(payload, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DataURI encodes payload as an inline PNG data URI.
func (e *Encoder) DataURI(payload string) (string, error) {
	png, err := e.PNG(payload)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
