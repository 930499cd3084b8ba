package render

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vintera/labelforge/internal/fault"
)

func servedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 9, 12))); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPRenderer_PostsDSLAndSniffsResponse(t *testing.T) {
	data := servedPNG(t)
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	preview, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), validDSL())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if preview.Width != 9 || preview.Height != 12 || preview.MIMEType != "image/png" {
		t.Errorf("preview = %dx%d %s", preview.Width, preview.Height, preview.MIMEType)
	}
	if gotBody["version"] != "1.0" {
		t.Errorf("posted document missing version: %v", gotBody["version"])
	}
}

func TestHTTPRenderer_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), validDSL())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !fault.Retryable(err) {
		t.Errorf("error = %v, want retryable", err)
	}
}

func TestHTTPRenderer_RejectionIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad document", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPRenderer(srv.URL, time.Second).Render(context.Background(), validDSL())
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if fault.Retryable(err) {
		t.Errorf("error = %v, want non-retryable", err)
	}
}
