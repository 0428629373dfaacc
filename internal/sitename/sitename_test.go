package sitename

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testFetcher(ts *httptest.Server) *Fetcher {
	f := NewFetcher(2 * time.Second)
	f.client = ts.Client()
	f.scheme = "http"
	return f
}

func TestResolvePrefersOGSiteName(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:site_name" content="Acme Webshop">
			<title>Acme — Home</title>
		</head></html>`))
	}))
	defer ts.Close()

	got := testFetcher(ts).Resolve(context.Background(), strings.TrimPrefix(ts.URL, "http://"))
	if got != "Acme Webshop" {
		t.Errorf("Resolve() = %q, want %q", got, "Acme Webshop")
	}
}

func TestResolveFallsBackToTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>  Acme Home  </title></head></html>`))
	}))
	defer ts.Close()

	got := testFetcher(ts).Resolve(context.Background(), strings.TrimPrefix(ts.URL, "http://"))
	if got != "Acme Home" {
		t.Errorf("Resolve() = %q, want %q", got, "Acme Home")
	}
}

func TestResolveFallsBackToDomainOnEmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head></head><body></body></html>`))
	}))
	defer ts.Close()

	domain := strings.TrimPrefix(ts.URL, "http://")
	got := testFetcher(ts).Resolve(context.Background(), domain)
	if got != domain {
		t.Errorf("Resolve() = %q, want %q", got, domain)
	}
}

func TestResolveFallsBackOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	domain := strings.TrimPrefix(ts.URL, "http://")
	got := testFetcher(ts).Resolve(context.Background(), domain)
	if got != domain {
		t.Errorf("Resolve() = %q, want %q", got, domain)
	}
}

func TestResolveFallsBackWhenUnreachable(t *testing.T) {
	f := NewFetcher(200 * time.Millisecond)
	f.scheme = "http"

	got := f.Resolve(context.Background(), "www.localhost.invalid")
	if got != "localhost.invalid" {
		t.Errorf("Resolve() = %q, want %q", got, "localhost.invalid")
	}
}
