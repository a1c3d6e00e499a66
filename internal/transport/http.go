package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

// MaxResponseBytes caps a response body, before and after Content-Encoding is reversed.
const MaxResponseBytes = 1 << 20

// HTTPTransport is the blocking RoundTripper backed by an *http.Client.
// Timeouts, TLS and connection pooling are properties of the client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client. A nil client uses http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// RoundTrip sends req and reads the whole response body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("transport: request is nil")
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.ContentType != "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	raw, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response: %w", err)
	}
	decoded, err := decodeBody(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       decoded,
	}, nil
}

// decodeBody reverses Content-Encoding for encodings the standard client leaves alone.
func decodeBody(contentEncoding string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return data, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("transport: failed to create gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "deflate":
		fl := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = fl.Close() }()
		reader = fl
	case "br":
		reader = brotli.NewReader(bytes.NewReader(data))
	case "zstd":
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("transport: failed to create zstd reader: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	default:
		return data, nil
	}
	decoded, err := readLimited(reader)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to decode %s body: %w", contentEncoding, err)
	}
	return decoded, nil
}

// readLimited reads r fully and fails once more than MaxResponseBytes arrive.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", MaxResponseBytes)
	}
	return data, nil
}
