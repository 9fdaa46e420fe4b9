package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const nominatimJSON = `[
  {"place_id": 88716, "lat": "48.8588897", "lon": "2.3200410", "display_name": "Paris, Ile-de-France, France",
   "address": {"city": "Paris", "state": "Ile-de-France", "country": "France"}},
  {"place_id": 1234, "lat": "33.6617962", "lon": "-95.5555130", "display_name": "Paris, Lamar County, Texas, United States",
   "address": {"town": "Paris", "county": "Lamar County", "country": "United States"}},
  {"place_id": 99, "lat": "n/a", "lon": "1.0", "display_name": "Broken"},
  {"place_id": 77, "lat": "45.1", "lon": "7.2", "display_name": "Parisot, Occitanie, France",
   "address": {"country": "France"}}
]`

func TestNominatimClient_Search(t *testing.T) {
	var gotUA, gotQ, gotFormat, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQ = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(nominatimJSON))
	}))
	defer server.Close()

	c := NewNominatimClient(server.URL, "", time.Second)
	got, err := c.Search(context.Background(), "paris", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotUA != DefaultUserAgent || gotQ != "paris" || gotFormat != "json" || gotLimit != "5" {
		t.Errorf("request ua=%q q=%q format=%q limit=%q", gotUA, gotQ, gotFormat, gotLimit)
	}
	if len(got) != 3 {
		t.Fatalf("len(Search()) = %d, want 3 (unparsable place skipped)", len(got))
	}
	if got[0].Name != "Paris" || got[0].Region != "Ile-de-France" || got[0].ID != 88716 || got[0].Lat != 48.8588897 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Region != "Lamar County" || got[1].Country != "United States" {
		t.Errorf("got[1] = %+v", got[1])
	}
	if got[2].Name != "Parisot" {
		t.Errorf("got[2].Name = %q, want Parisot from display_name", got[2].Name)
	}
}

func TestNominatimClient_CustomUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewNominatimClient(server.URL, "custom/2.0", time.Second)
	got, err := c.Search(context.Background(), "x", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
	if gotUA != "custom/2.0" {
		t.Errorf("User-Agent = %q, want custom/2.0", gotUA)
	}
}

func TestNominatimClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ``},
		{"forbidden", http.StatusForbidden, `blocked`},
		{"invalid json", http.StatusOK, `{"not":"array"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewNominatimClient(server.URL, "", time.Second)
			if _, err := c.Search(context.Background(), "paris", 5); !errors.Is(err, ErrUpstreamFailure) {
				t.Errorf("Search() error = %v, want ErrUpstreamFailure", err)
			}
		})
	}
}
