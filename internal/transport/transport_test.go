package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

func TestHTTPTransportSendsRequest(t *testing.T) {
	var gotMethod, gotContentType, gotAuth, gotAccept string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rt := NewHTTPTransport(srv.Client())
	resp, err := rt.RoundTrip(context.Background(), &Request{
		Method:      http.MethodPost,
		URL:         srv.URL,
		Header:      http.Header{"Authorization": {"Bearer tok"}},
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte("a=b"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || !resp.IsSuccess() {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Header.Get("X-Test") != "yes" {
		t.Fatal("expected response header to be copied")
	}
	if gotMethod != http.MethodPost || gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected method/content type %s %s", gotMethod, gotContentType)
	}
	if gotAuth != "Bearer tok" || gotAccept != "application/json" {
		t.Fatalf("unexpected headers auth=%q accept=%q", gotAuth, gotAccept)
	}
	if string(gotBody) != "a=b" {
		t.Fatalf("unexpected request body %q", gotBody)
	}
}

func TestHTTPTransportReturnsErrorStatusAsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp, err := NewHTTPTransport(srv.Client()).RoundTrip(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.IsSuccess() || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestHTTPTransportNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewHTTPTransport(nil).RoundTrip(context.Background(), &Request{URL: url}); err == nil {
		t.Fatal("expected network error")
	}
}

func TestHTTPTransportDecodesBodies(t *testing.T) {
	payload := []byte(`{"access_token":"A"}`)

	encoders := map[string]func(t *testing.T) []byte{
		"gzip": func(t *testing.T) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, _ = w.Write(payload)
			_ = w.Close()
			return buf.Bytes()
		},
		"br": func(t *testing.T) []byte {
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			_, _ = w.Write(payload)
			_ = w.Close()
			return buf.Bytes()
		},
		"zstd": func(t *testing.T) []byte {
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				t.Fatalf("zstd writer: %v", err)
			}
			defer func() { _ = enc.Close() }()
			return enc.EncodeAll(payload, nil)
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			body := encode(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", name)
				_, _ = w.Write(body)
			}))
			defer srv.Close()

			resp, err := NewHTTPTransport(srv.Client()).RoundTrip(context.Background(), &Request{
				URL:    srv.URL,
				Header: http.Header{"Accept-Encoding": {name}},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(resp.Body, payload) {
				t.Fatalf("expected decoded body %q, got %q", payload, resp.Body)
			}
		})
	}
}

func TestHTTPTransportLimitsBodySize(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("a"), MaxResponseBytes+1)
	var bomb bytes.Buffer
	w := gzip.NewWriter(&bomb)
	_, _ = w.Write(big)
	_ = w.Close()

	cases := map[string]struct {
		encoding string
		body     []byte
	}{
		"raw":     {"", big},
		"decoded": {"gzip", bomb.Bytes()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.encoding != "" {
					w.Header().Set("Content-Encoding", tc.encoding)
				}
				_, _ = w.Write(tc.body)
			}))
			defer srv.Close()

			_, err := NewHTTPTransport(srv.Client()).RoundTrip(context.Background(), &Request{
				URL:    srv.URL,
				Header: http.Header{"Accept-Encoding": {"gzip"}},
			})
			if err == nil || !strings.Contains(err.Error(), "exceeds") {
				t.Fatalf("expected size limit error, got %v", err)
			}
		})
	}

	if _, err := readLimited(bytes.NewReader(bytes.Repeat([]byte("a"), MaxResponseBytes))); err != nil {
		t.Fatalf("expected body at the limit to be accepted, got %v", err)
	}
}

func TestAsyncAndAwaitingAdapters(t *testing.T) {
	calls := 0
	rt := RoundTripperFunc(func(ctx context.Context, req *Request) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusOK, Body: []byte(req.URL)}, nil
	})

	fut := Async(rt).Submit(context.Background(), &Request{URL: "https://example.test"})
	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("future did not complete")
	}
	resp, err := fut.Result()
	if err != nil || string(resp.Body) != "https://example.test" {
		t.Fatalf("unexpected result %v %v", resp, err)
	}

	resp, err = Awaiting(Async(rt)).RoundTrip(context.Background(), &Request{URL: "again"})
	if err != nil || string(resp.Body) != "again" {
		t.Fatalf("unexpected awaited result %v %v", resp, err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestFutureAwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	fut := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fut.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResolvedFuture(t *testing.T) {
	want := errors.New("boom")
	v, err := Resolved(7, want).Result()
	if v != 7 || !errors.Is(err, want) {
		t.Fatalf("unexpected resolved result %d %v", v, err)
	}
}
