package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/common"
)

func testProbeConfig() *common.ProbeConfig {
	return &common.ProbeConfig{
		UserAgent:      "recensio-test",
		RequestTimeout: 2 * time.Second,
	}
}

func TestFetchParsesMicrodata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "recensio-test" {
			t.Errorf("unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Кофейня Италия — Яндекс Карты">
			<meta itemprop="ratingValue" content="4.6">
			<meta itemprop="reviewCount" content="120">
		</head><body></body></html>`))
	}))
	defer server.Close()

	service := NewService(testProbeConfig(), arbor.NewLogger())
	meta := service.Fetch(context.Background(), server.URL+"/org/italy/42")
	if meta == nil {
		t.Fatal("expected a metadata snapshot")
	}
	if meta.Name != "Кофейня Италия" {
		t.Errorf("name = %q", meta.Name)
	}
	if meta.Rating != 4.6 {
		t.Errorf("rating = %v", meta.Rating)
	}
	if meta.ReviewCount != 120 {
		t.Errorf("review count = %d", meta.ReviewCount)
	}
}

func TestFetchFallsBackToRawMarkup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<script>var state = {"ratingValue":"4,2","reviewCount":57};</script>
		</body></html>`))
	}))
	defer server.Close()

	service := NewService(testProbeConfig(), arbor.NewLogger())
	meta := service.Fetch(context.Background(), server.URL+"/org/place/42")
	if meta == nil {
		t.Fatal("expected a metadata snapshot from raw markup")
	}
	if meta.ReviewCount != 57 {
		t.Errorf("review count = %d", meta.ReviewCount)
	}
	if meta.Rating != 4.2 {
		t.Errorf("rating = %v, comma separator not handled", meta.Rating)
	}
}

func TestFetchNormalizesToReviewsPage(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`<meta itemprop="reviewCount" content="5">`))
	}))
	defer server.Close()

	service := NewService(testProbeConfig(), arbor.NewLogger())
	service.Fetch(context.Background(), server.URL+"/org/place/42")
	if gotPath != "/org/place/42/reviews/" {
		t.Errorf("probe hit %s, want the reviews page", gotPath)
	}
}

func TestFetchFailsSoft(t *testing.T) {
	service := NewService(testProbeConfig(), arbor.NewLogger())

	t.Run("non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()
		if meta := service.Fetch(context.Background(), server.URL+"/org/x/1"); meta != nil {
			t.Error("expected nil on 403")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		if meta := service.Fetch(context.Background(), "http://127.0.0.1:1/org/x/1"); meta != nil {
			t.Error("expected nil on connection failure")
		}
	})

	t.Run("no metadata in page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body><p>captcha</p></body></html>`))
		}))
		defer server.Close()
		if meta := service.Fetch(context.Background(), server.URL+"/org/x/1"); meta != nil {
			t.Error("expected nil when the page has no counters")
		}
	})
}

func TestFetchRespectsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<meta itemprop="reviewCount" content="5">`))
	}))
	defer server.Close()

	config := testProbeConfig()
	config.RateLimit = 200 * time.Millisecond
	service := NewService(config, arbor.NewLogger())

	start := time.Now()
	service.Fetch(context.Background(), server.URL+"/org/x/1")
	service.Fetch(context.Background(), server.URL+"/org/x/1")
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("second probe ran after %v, rate limit not applied", elapsed)
	}
}
