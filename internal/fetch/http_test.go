package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/catalog/internal/core"
)

func newDocServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/price.csv", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "name,price\nЧайник,1500\n")
	})
	mux.HandleFunc("/docs/big.csv", func(w http.ResponseWriter, r *http.Request) {
		// Flushing forces chunked encoding, so no Content-Length is sent.
		w.(http.Flusher).Flush()
		io.WriteString(w, strings.Repeat("x", 2048))
	})
	mux.HandleFunc("/docs/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	mux.HandleFunc("/docs/secret", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := newDocServer(t)
	f, err := NewHTTPFetcher(srv.URL+"/docs", time.Second, 1024)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, ref := range []string{"price.csv", "/price.csv", srv.URL + "/docs/price.csv"} {
		body, err := f.Fetch(ctx, ref)
		if err != nil {
			t.Fatalf("Fetch(%q): %v", ref, err)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil || !strings.HasPrefix(string(data), "name,price") {
			t.Errorf("Fetch(%q) body = %q, %v", ref, data, err)
		}
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := newDocServer(t)
	f, _ := NewHTTPFetcher(srv.URL+"/docs/", time.Second, 1024)
	ctx := context.Background()

	tests := []struct {
		ref       string
		want      error
		retryable bool
	}{
		{"missing.csv", core.ErrNotFound, false},
		{"secret", core.ErrInvalidInput, false},
		{"", core.ErrInvalidInput, false},
		{"ftp://example.com/x.csv", core.ErrInvalidInput, false},
		{"broken", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			_, err := f.Fetch(ctx, tt.ref)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if got := core.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", err, got, tt.retryable)
			}
		})
	}
}

func TestHTTPFetcher_SizeLimit(t *testing.T) {
	srv := newDocServer(t)
	f, _ := NewHTTPFetcher(srv.URL+"/docs", time.Second, 1024)

	body, err := f.Fetch(context.Background(), "big.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	defer body.Close()

	if _, err := io.ReadAll(body); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("reading oversized body: got %v, want ErrInvalidInput", err)
	}
}

func TestHTTPFetcher_RelativeWithoutBase(t *testing.T) {
	f, err := NewHTTPFetcher("", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fetch(context.Background(), "price.csv"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
	if _, err := NewHTTPFetcher("not a url", 0, 0); err == nil {
		t.Error("bad base URL accepted")
	}
}
