package assetcache

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/eugenenazirov/bicarb-prep/internal/storage"
)

// HandlerOrigin fetches assets by running an internal GET request through handler.
// Only 200 responses are cacheable.
type HandlerOrigin struct {
	handler http.Handler
}

// NewHandlerOrigin returns an Origin backed by handler.
func NewHandlerOrigin(handler http.Handler) *HandlerOrigin {
	return &HandlerOrigin{handler: handler}
}

// Fetch implements Origin.
func (o *HandlerOrigin) Fetch(ctx context.Context, path string) (storage.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return storage.Entry{}, fmt.Errorf("build request: %w", err)
	}

	rec := newBufferedResponse()
	o.handler.ServeHTTP(rec, req)

	if rec.status != http.StatusOK {
		return storage.Entry{}, fmt.Errorf("origin returned status %d", rec.status)
	}

	return storage.Entry{
		Path:            path,
		ContentType:     rec.header.Get("Content-Type"),
		ContentLanguage: rec.header.Get("Content-Language"),
		Vary:            rec.header.Get("Vary"),
		Body:            rec.body.Bytes(),
	}, nil
}

type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}
