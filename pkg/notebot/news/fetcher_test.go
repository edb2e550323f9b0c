package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sample</title>
  <link>https://example.com/</link>
  <item><title>First &amp; foremost</title><link>https://example.com/1</link></item>
  <item><title><![CDATA[<b>Bold</b>   headline]]></title><link> https://example.com/2 </link></item>
  <item><title></title><link>https://example.com/3</link></item>
  <item><title>Fourth</title><link>https://example.com/4</link></item>
</channel>
</rss>`

func feedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := feedServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	})

	f := NewFetcher(FetcherConfig{}, srv.Client(), nil, nil)
	items, err := f.Fetch(context.Background(), "sample", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []Headline{
		{Title: "First & foremost", Link: "https://example.com/1"},
		{Title: "Bold headline", Link: "https://example.com/2"},
		{Title: "(untitled)", Link: "https://example.com/3"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
	if gotUA == "" {
		t.Error("User-Agent header not sent")
	}
}

func TestFetcher_MaxItems(t *testing.T) {
	srv := feedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})
	f := NewFetcher(FetcherConfig{MaxItems: 1}, srv.Client(), nil, nil)
	items, err := f.Fetch(context.Background(), "sample", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
}

func TestFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not a feed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html><body>hello</body></html>"))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := feedServer(t, tt.handler)
			f := NewFetcher(FetcherConfig{Timeout: 100 * time.Millisecond}, srv.Client(), nil, nil)
			items, err := f.Fetch(context.Background(), "broken", srv.URL)
			if !errors.Is(err, ErrFetchFailed) {
				t.Fatalf("Fetch error = %v, want ErrFetchFailed", err)
			}
			if items != nil {
				t.Errorf("items = %+v, want nil", items)
			}
		})
	}
}

func TestNewSafeClient_RefusesLoopback(t *testing.T) {
	srv := feedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})
	f := NewFetcher(FetcherConfig{Timeout: time.Second}, nil, nil, nil)
	if _, err := f.Fetch(context.Background(), "local", srv.URL); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("safe client fetched a loopback URL: %v", err)
	}
}
