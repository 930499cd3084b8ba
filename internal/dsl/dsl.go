// Package dsl defines the label layout DSL: the structured, versioned
// description of a label's canvas, palette, typography, assets and
// positioned elements that every pipeline step produces or consumes.
//
// A LabelDSL is created once by the detailed-layout step and thereafter
// only produced anew by the edit engine. Parse injects stable defaults
// which survive serialize/parse round trips unchanged.
package dsl

import (
	"encoding/json"
	"fmt"

	"github.com/vintera/labelforge/internal/fault"
)

// Version is the DSL schema version emitted by this package.
const Version = "1.0"

// Canvas defaults and element limits.
const (
	DefaultDPI        = 144
	DefaultAlign      = "left"
	DefaultLineHeight = 1.2
	DefaultMaxLines   = 1
	MaxZ              = 1000
)

// Element type discriminators.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeShape = "shape"
)

// Palette roles. Element colors reference roles, never literal hex values,
// so the palette stays the single source of truth.
var PaletteRoles = []string{"primary", "secondary", "accent", "background"}

// LabelDSL is the complete layout description for one label.
type LabelDSL struct {
	Version    string     `json:"version"`
	Canvas     Canvas     `json:"canvas"`
	Palette    Palette    `json:"palette"`
	Typography Typography `json:"typography"`
	Assets     []Asset    `json:"assets"`
	Elements   []Element  `json:"elements"`
}

// Canvas describes the physical label surface.
type Canvas struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	DPI        int    `json:"dpi"`
	Background string `json:"background,omitempty"`
}

// Palette holds exactly four hex colors plus mood enums.
type Palette struct {
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary"`
	Accent      string `json:"accent"`
	Background  string `json:"background"`
	Temperature string `json:"temperature"` // warm|cool|neutral
	Contrast    string `json:"contrast"`    // high|medium|low
}

// Color returns the hex value for a palette role, or "" if the role is
// unknown.
func (p Palette) Color(role string) string {
	switch role {
	case "primary":
		return p.Primary
	case "secondary":
		return p.Secondary
	case "accent":
		return p.Accent
	case "background":
		return p.Background
	}
	return ""
}

// Font describes one typeface choice.
type Font struct {
	Family string `json:"family"`
	Weight int    `json:"weight"`
}

// Typography holds the two label typefaces and their hierarchy.
type Typography struct {
	Primary   Font   `json:"primary"`
	Secondary Font   `json:"secondary"`
	Hierarchy string `json:"hierarchy"` // dominant|balanced|subtle
}

// Asset references a generated image by id. URL and checksum point into
// the content-addressable store.
type Asset struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Checksum string `json:"checksum"`
}

// Bounds is a normalized rectangle: all four values in [0,1], with
// X+W <= 1 and Y+H <= 1.
type Bounds struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Element is a tagged union over text, image and shape variants. Type
// decides which variant fields are meaningful.
type Element struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Bounds Bounds `json:"bounds"`
	Z      int    `json:"z"`

	// Text variant
	Text       string  `json:"text,omitempty"`
	Font       string  `json:"font,omitempty"`  // "primary" or "secondary"
	Color      string  `json:"color,omitempty"` // palette role
	Align      string  `json:"align,omitempty"`
	LineHeight float64 `json:"lineHeight,omitempty"`
	MaxLines   int     `json:"maxLines,omitempty"`

	// Image variant
	AssetID string `json:"assetId,omitempty"`
	Fit     string `json:"fit,omitempty"` // cover|contain|fill

	// Shape variant
	Shape string `json:"shape,omitempty"` // rect|line|ellipse
	Fill  string `json:"fill,omitempty"`  // palette role
}

// Parse decodes, structurally validates and normalizes a DSL document.
// Omitted-but-defaulted fields are filled in; the result satisfies every
// invariant or a validation error is returned.
func Parse(data []byte) (*LabelDSL, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fault.Wrap(fault.KindValidation, false, "label DSL is not valid JSON", err)
	}
	if err := validateStructure(raw); err != nil {
		return nil, err
	}

	var d LabelDSL
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fault.Wrap(fault.KindValidation, false, "label DSL does not match the expected shape", err)
	}

	d.applyDefaults()

	if err := d.Check(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Serialize encodes the DSL. Parsing the output yields a value deep-equal
// to d, injected defaults included.
func (d *LabelDSL) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize label DSL: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy. The edit engine mutates copies, never the
// input value.
func (d *LabelDSL) Clone() *LabelDSL {
	out := *d
	out.Assets = make([]Asset, len(d.Assets))
	copy(out.Assets, d.Assets)
	out.Elements = make([]Element, len(d.Elements))
	copy(out.Elements, d.Elements)
	return &out
}

// Element returns a pointer to the element with the given id, or nil.
func (d *LabelDSL) Element(id string) *Element {
	for i := range d.Elements {
		if d.Elements[i].ID == id {
			return &d.Elements[i]
		}
	}
	return nil
}

// applyDefaults fills omitted fields with their stable defaults.
func (d *LabelDSL) applyDefaults() {
	if d.Version == "" {
		d.Version = Version
	}
	if d.Canvas.DPI == 0 {
		d.Canvas.DPI = DefaultDPI
	}
	if d.Assets == nil {
		d.Assets = []Asset{}
	}
	if d.Elements == nil {
		d.Elements = []Element{}
	}
	for i := range d.Elements {
		el := &d.Elements[i]
		if el.Type != TypeText {
			continue
		}
		if el.Align == "" {
			el.Align = DefaultAlign
		}
		if el.LineHeight == 0 {
			el.LineHeight = DefaultLineHeight
		}
		if el.MaxLines == 0 {
			el.MaxLines = DefaultMaxLines
		}
	}
}
