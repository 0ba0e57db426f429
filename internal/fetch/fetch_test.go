package fetch_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wincrt/xwin/internal/fetch"
)

func TestGetPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f, err := fetch.New(0, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := f.Get(context.Background(), srv.URL, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("payload")) || buf.String() != "payload" {
		t.Fatalf("Get() = %d bytes %q, want %q", n, buf.String(), "payload")
	}
}

func TestGetGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte("compressed payload"))
		zw.Close()
	}))
	defer srv.Close()

	f, err := fetch.New(0, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := f.Get(context.Background(), srv.URL, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "compressed payload" {
		t.Fatalf("Get() = %q, want %q", buf.String(), "compressed payload")
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, err := fetch.New(0, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_, err = f.Get(context.Background(), srv.URL, &buf)
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	if fetch.Retryable(err) {
		t.Fatal("404 should not be retryable")
	}
}

func TestGetServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f, err := fetch.New(0, "")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_, err = f.Get(context.Background(), srv.URL, &buf)
	if err == nil {
		t.Fatal("expected an error for 502")
	}
	if !fetch.Retryable(err) {
		t.Fatal("502 should be retryable")
	}
}
