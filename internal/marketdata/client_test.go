package marketdata

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestGetKlines tests parsing of the kline array format
func TestGetKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDC" || q.Get("interval") != "5m" || q.Get("limit") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			[1700000000000, "100.5", "101.2", "99.8", "100.9", "1234.5", 1700000299999, "0", 10, "0", "0", "0"],
			[1700000300000, "100.9", "102.0", "100.1", "101.7", "2345.6", 1700000599999, "0", 12, "0", "0", "0"]
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	s, err := client.GetKlines("BTCUSDC", "5m", 2)
	if err != nil {
		t.Fatal(err)
	}

	if s.Symbol != "BTCUSDC" {
		t.Errorf("expected symbol BTCUSDC, got %q", s.Symbol)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", s.Len())
	}

	b := s.Bars[0]
	if b.Timestamp != 1700000000000 {
		t.Errorf("expected open time 1700000000000, got %d", b.Timestamp)
	}
	if b.Open != 100.5 || b.High != 101.2 || b.Low != 99.8 || b.Close != 100.9 || b.Volume != 1234.5 {
		t.Errorf("unexpected bar values: %+v", b)
	}
}

// TestGetKlinesAPIError tests non-200 handling
func TestGetKlinesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.GetKlines("NOPE", "5m", 10); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

// TestGetKlinesMalformedKline tests short rows
func TestGetKlinesMalformedKline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000, "100.5"]]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.GetKlines("BTCUSDC", "5m", 1); err == nil {
		t.Error("expected an error for a truncated kline row")
	}
}

// TestGetKlinesRejectsUnorderedData tests that series validation applies
func TestGetKlinesRejectsUnorderedData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			[1700000300000, "100.9", "102.0", "100.1", "101.7", "2345.6"],
			[1700000000000, "100.5", "101.2", "99.8", "100.9", "1234.5"]
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.GetKlines("BTCUSDC", "5m", 2); err == nil {
		t.Error("expected out-of-order klines to fail validation")
	}
}
