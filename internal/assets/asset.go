// Package assets implements content-addressable image storage: blobs
// keyed by SHA-256 checksum so identical bytes anywhere resolve to one
// physical object, with alias rows mapping (generationID, assetID) pairs
// onto shared blobs.
package assets

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/vintera/labelforge/internal/fault"
)

// ErrNotFound is returned when no matching alias row exists.
var ErrNotFound = errors.New("asset not found")

// ImageAsset describes one stored image. Checksum is its identity for
// deduplication; URL points at the shared content-addressed blob.
type ImageAsset struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Checksum string `json:"checksum"`
}

// Checksum returns the lowercase hex SHA-256 of data. Stable across
// repeated calls on the same bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Info is what Sniff learns from raw image bytes.
type Info struct {
	Format string // "png", "jpeg", "gif"
	Width  int
	Height int
}

// MIMEType returns the MIME type for the sniffed format.
func (i Info) MIMEType() string {
	return "image/" + i.Format
}

// Sniff detects format and dimensions from raw bytes. Unreadable data is
// a non-retryable validation error: re-sending the same bytes will never
// succeed.
func Sniff(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fault.Wrap(fault.KindValidation, false, "image data is unreadable", err).
			With("bytes", len(data))
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
