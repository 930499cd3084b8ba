package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/llm"
)

// offlineClient serves canned, deterministic responses for mock mode so
// the full pipeline runs without network access. The canned layout
// matches the canned prompts' asset ids.
type offlineClient struct{}

func newScriptedMock() *offlineClient { return &offlineClient{} }

const offlineScheme = `{
  "palette": {
    "primary": "#5a1f2b", "secondary": "#d9c7a3", "accent": "#8c6d3f",
    "background": "#f4efe6", "temperature": "warm", "contrast": "high"
  },
  "typography": {
    "primary": {"family": "Playfair Display", "weight": 700},
    "secondary": {"family": "Lato", "weight": 400},
    "hierarchy": "dominant"
  },
  "mood": "classic estate label with restrained ornament"
}`

const offlinePrompts = `{
  "prompts": [
    {"assetId": "backdrop", "prompt": "aged parchment texture, soft vignette", "aspectRatio": "3:4"},
    {"assetId": "crest", "prompt": "engraved vineyard crest, copperplate style, no lettering", "aspectRatio": "1:1"}
  ]
}`

const offlineLayout = `{
  "version": "1.0",
  "canvas": {"width": 900, "height": 1200},
  "palette": {
    "primary": "#5a1f2b", "secondary": "#d9c7a3", "accent": "#8c6d3f",
    "background": "#f4efe6", "temperature": "warm", "contrast": "high"
  },
  "typography": {
    "primary": {"family": "Playfair Display", "weight": 700},
    "secondary": {"family": "Lato", "weight": 400},
    "hierarchy": "dominant"
  },
  "elements": [
    {"id": "backdrop-image", "type": "image", "bounds": {"x": 0, "y": 0, "w": 1, "h": 1},
     "z": 0, "assetId": "backdrop", "fit": "cover"},
    {"id": "crest-image", "type": "image", "bounds": {"x": 0.4, "y": 0.08, "w": 0.2, "h": 0.15},
     "z": 5, "assetId": "crest", "fit": "contain"},
    {"id": "wine-name", "type": "text", "bounds": {"x": 0.1, "y": 0.3, "w": 0.8, "h": 0.12},
     "z": 10, "text": "WINE NAME", "font": "primary", "color": "primary", "align": "center"},
    {"id": "vintage", "type": "text", "bounds": {"x": 0.3, "y": 0.46, "w": 0.4, "h": 0.06},
     "z": 10, "text": "VINTAGE", "font": "secondary", "color": "secondary", "align": "center"},
    {"id": "divider", "type": "shape", "bounds": {"x": 0.2, "y": 0.55, "w": 0.6, "h": 0.005},
     "z": 8, "shape": "line", "fill": "accent"}
  ]
}`

const offlineEdits = `{"edits": [{"op": "move", "id": "wine-name", "dx": 0.0, "dy": -0.02}]}`

// Generate routes on distinctive instruction text, since the transport
// never sees the step name.
func (offlineClient) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	switch {
	case strings.Contains(req.Prompt, "art director"):
		return offlineScheme, nil
	case strings.Contains(req.Prompt, "image-generation prompts"):
		return offlinePrompts, nil
	case strings.Contains(req.Prompt, "Lay out this wine label"):
		return offlineLayout, nil
	case strings.Contains(req.Prompt, "reviewing a wine label layout"):
		return offlineEdits, nil
	}
	return "", fault.New(fault.KindProcessing, false, "offline mock has no response for this prompt")
}

// GenerateImage returns a deterministic solid PNG derived from the
// prompt, so distinct prompts get distinct checksums.
func (offlineClient) GenerateImage(_ context.Context, req llm.ImageRequest) ([]byte, error) {
	var h uint32
	for _, c := range req.Prompt {
		h = h*31 + uint32(c)
	}
	fill := color.RGBA{R: uint8(h), G: uint8(h >> 8), B: uint8(h >> 16), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, 48, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 48; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding mock image: %w", err)
	}
	return buf.Bytes(), nil
}

// memoryAliases keeps alias rows in memory for runs without a database.
type memoryAliases struct {
	mu   sync.Mutex
	rows map[string]assets.AliasRecord
}

func newMemoryAliases() *memoryAliases {
	return &memoryAliases{rows: map[string]assets.AliasRecord{}}
}

func aliasMapKey(generationID uuid.UUID, assetID string) string {
	return generationID.String() + "/" + assetID
}

func (m *memoryAliases) UpsertAlias(_ context.Context, rec *assets.AliasRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[aliasMapKey(rec.GenerationID, rec.AssetID)] = *rec
	return nil
}

func (m *memoryAliases) GetAlias(_ context.Context, generationID uuid.UUID, assetID string) (*assets.AliasRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.rows[aliasMapKey(generationID, assetID)]; ok {
		out := rec
		return &out, nil
	}
	return nil, assets.ErrNotFound
}

func (m *memoryAliases) FindByChecksum(_ context.Context, checksum string) (*assets.AliasRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		if rec.Checksum == checksum {
			out := rec
			return &out, nil
		}
	}
	return nil, assets.ErrNotFound
}
