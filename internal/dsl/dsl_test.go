package dsl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const minimalDoc = `{
  "version": "1.0",
  "canvas": {"width": 900, "height": 1200},
  "palette": {
    "primary": "#5a1f2b",
    "secondary": "#d9c7a3",
    "accent": "#8c6d3f",
    "background": "#f4efe6",
    "temperature": "warm",
    "contrast": "high"
  },
  "typography": {
    "primary": {"family": "Playfair Display", "weight": 700},
    "secondary": {"family": "Lato", "weight": 400},
    "hierarchy": "dominant"
  }
}`

func fullDoc() string {
	return `{
  "version": "1.0",
  "canvas": {"width": 900, "height": 1200, "dpi": 300, "background": "#f4efe6"},
  "palette": {
    "primary": "#5a1f2b",
    "secondary": "#d9c7a3",
    "accent": "#8c6d3f",
    "background": "#f4efe6",
    "temperature": "warm",
    "contrast": "high"
  },
  "typography": {
    "primary": {"family": "Playfair Display", "weight": 700},
    "secondary": {"family": "Lato", "weight": 400},
    "hierarchy": "dominant"
  },
  "assets": [
    {"id": "bg", "url": "https://cdn.example.com/content/abc.png", "width": 1024, "height": 1024, "format": "png", "checksum": "abc"}
  ],
  "elements": [
    {"id": "title", "type": "text", "bounds": {"x": 0.1, "y": 0.1, "w": 0.8, "h": 0.2}, "z": 10,
     "text": "Chateau Margaux", "font": "primary", "color": "primary", "align": "center", "lineHeight": 1.4, "maxLines": 2},
    {"id": "art", "type": "image", "bounds": {"x": 0.2, "y": 0.35, "w": 0.6, "h": 0.4}, "z": 5,
     "assetId": "bg", "fit": "cover"},
    {"id": "rule", "type": "shape", "bounds": {"x": 0.1, "y": 0.8, "w": 0.8, "h": 0.01}, "z": 8,
     "shape": "line", "fill": "accent"}
  ]
}`
}

func TestParse_InjectsDefaults(t *testing.T) {
	d, err := Parse([]byte(minimalDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if d.Canvas.DPI != DefaultDPI {
		t.Errorf("Canvas.DPI = %d, want %d", d.Canvas.DPI, DefaultDPI)
	}
	if d.Assets == nil || len(d.Assets) != 0 {
		t.Errorf("Assets = %v, want empty non-nil slice", d.Assets)
	}
	if d.Elements == nil || len(d.Elements) != 0 {
		t.Errorf("Elements = %v, want empty non-nil slice", d.Elements)
	}
}

func TestParse_TextElementDefaults(t *testing.T) {
	doc := strings.Replace(fullDoc(),
		`, "align": "center", "lineHeight": 1.4, "maxLines": 2`,
		``, 1)
	d, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	title := d.Element("title")
	if title.Align != DefaultAlign {
		t.Errorf("Align = %q, want %q", title.Align, DefaultAlign)
	}
	if title.LineHeight != DefaultLineHeight {
		t.Errorf("LineHeight = %v, want %v", title.LineHeight, DefaultLineHeight)
	}
	if title.MaxLines != DefaultMaxLines {
		t.Errorf("MaxLines = %d, want %d", title.MaxLines, DefaultMaxLines)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, doc := range []string{minimalDoc, fullDoc()} {
		first, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}

		data, err := first.Serialize()
		if err != nil {
			t.Fatalf("Serialize() error = %v", err)
		}

		second, err := Parse(data)
		if err != nil {
			t.Fatalf("re-Parse() error = %v", err)
		}

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("round trip changed the DSL (-first +second):\n%s", diff)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(string) string
	}{
		{
			name:   "not json",
			mutate: func(string) string { return "not json {" },
		},
		{
			name:   "missing palette",
			mutate: func(s string) string { return strings.Replace(s, `"palette"`, `"colours"`, 1) },
		},
		{
			name:   "bad hex color",
			mutate: func(s string) string { return strings.Replace(s, "#5a1f2b", "maroon", 1) },
		},
		{
			name:   "bad temperature enum",
			mutate: func(s string) string { return strings.Replace(s, `"warm"`, `"tepid"`, 1) },
		},
		{
			name:   "zero canvas width",
			mutate: func(s string) string { return strings.Replace(s, `"width": 900`, `"width": 0`, 1) },
		},
		{
			name: "bounds overflow canvas",
			mutate: func(s string) string {
				return strings.Replace(s, `{"x": 0.1, "y": 0.1, "w": 0.8, "h": 0.2}`, `{"x": 0.5, "y": 0.1, "w": 0.8, "h": 0.2}`, 1)
			},
		},
		{
			name: "z above 1000",
			mutate: func(s string) string {
				return strings.Replace(s, `"z": 10`, `"z": 1001`, 1)
			},
		},
		{
			name: "duplicate element id",
			mutate: func(s string) string {
				return strings.Replace(s, `"id": "rule"`, `"id": "title"`, 1)
			},
		},
		{
			name: "image references undeclared asset",
			mutate: func(s string) string {
				return strings.Replace(s, `"assetId": "bg"`, `"assetId": "missing"`, 1)
			},
		},
		{
			name: "unknown element type",
			mutate: func(s string) string {
				return strings.Replace(s, `"type": "shape"`, `"type": "video"`, 1)
			},
		},
		{
			name: "literal hex as element color",
			mutate: func(s string) string {
				return strings.Replace(s, `"color": "primary"`, `"color": "#ff0000"`, 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.mutate(fullDoc()))); err == nil {
				t.Error("Parse() accepted an invalid document")
			}
		})
	}
}

func TestClone_Independent(t *testing.T) {
	d, err := Parse([]byte(fullDoc()))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	clone := d.Clone()
	clone.Elements[0].Text = "changed"
	clone.Assets[0].URL = "changed"

	if d.Elements[0].Text == "changed" || d.Assets[0].URL == "changed" {
		t.Error("Clone() shares backing arrays with the original")
	}
}

func TestPaletteColor(t *testing.T) {
	p := Palette{Primary: "#111111", Secondary: "#222222", Accent: "#333333", Background: "#444444"}
	if got := p.Color("accent"); got != "#333333" {
		t.Errorf("Color(accent) = %q", got)
	}
	if got := p.Color("bogus"); got != "" {
		t.Errorf("Color(bogus) = %q, want empty", got)
	}
}
