package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/fault"
)

// maxPreviewBytes bounds how much image data one render may return.
const maxPreviewBytes = 32 << 20

// HTTPRenderer calls an external rasterizer service: POST the DSL as
// JSON, receive the rendered image bytes back. Failures surface as
// classified errors so the retry layer can tell a timeout from a bad
// document.
type HTTPRenderer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRenderer creates a renderer against the rasterizer endpoint.
func NewHTTPRenderer(endpoint string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Render posts the document and sniffs the response bytes for
// dimensions.
func (r *HTTPRenderer) Render(ctx context.Context, d *dsl.LabelDSL) (*Preview, error) {
	body, err := d.Serialize()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, true, "rasterizer unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, true, "reading rendered image", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fault.New(fault.KindNetwork, true, "rasterizer unavailable").
			With("status", resp.StatusCode)
	default:
		return nil, fault.New(fault.KindValidation, false, "rasterizer rejected the document").
			With("status", resp.StatusCode).
			With("body", string(data[:min(len(data), 256)]))
	}

	info, err := assets.Sniff(data)
	if err != nil {
		return nil, fault.Wrap(fault.KindProcessing, false, "rasterizer returned unreadable image data", err)
	}
	return &Preview{
		Data:     data,
		Width:    info.Width,
		Height:   info.Height,
		MIMEType: info.MIMEType(),
	}, nil
}
