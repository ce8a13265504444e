package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testContract = "0x424d781e0163b5a42ca2f27d036c2d5c561022c3"

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(baseURL string, includeBids bool) *Client {
	return NewClient(Options{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Contract:    testContract,
		Chain:       "base",
		IncludeBids: includeBids,
		Timeout:     time.Second,
	}, noopLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestRecentSalesPrimaryShortCircuits(t *testing.T) {
	var activityCalls, fillsCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %q, want 100", got)
		}
		writeJSON(t, w, map[string]any{
			"sales": []map[string]any{
				{
					"id":        "sale-1",
					"orderHash": "0xaaa",
					"orderSide": "ask",
					"token": map[string]any{
						"tokenId":  "42",
						"contract": testContract,
						"name":     "Primitives #42",
						"collection": map[string]any{
							"id":   "primitives",
							"name": "Primitives",
						},
					},
					"price": map[string]any{
						"currency": map[string]any{"symbol": "ETH"},
						"amount":   map[string]any{"decimal": 1.5},
					},
					"timestamp": 1700000000,
				},
			},
		})
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		activityCalls.Add(1)
		writeJSON(t, w, map[string]any{"activities": []any{}})
	})
	mux.HandleFunc("/orders/fills/v6", func(w http.ResponseWriter, r *http.Request) {
		fillsCalls.Add(1)
		writeJSON(t, w, map[string]any{"fills": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("RecentSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(sales))
	}

	sale := sales[0]
	if sale.OrderHash != "0xaaa" || sale.TokenID != "42" || sale.Side != OrderSideAsk {
		t.Fatalf("unexpected normalized sale: %+v", sale)
	}
	if sale.PriceETH.String() != "1.5" {
		t.Fatalf("price = %s, want 1.5", sale.PriceETH)
	}
	if sale.CollectionName != "Primitives" {
		t.Fatalf("collection = %q", sale.CollectionName)
	}

	if activityCalls.Load() != 0 || fillsCalls.Load() != 0 {
		t.Fatal("fallback strategies must not run when the sales endpoint has results")
	}
}

func TestRecentSalesFallsBackToActivity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sales": []any{}})
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("types"); got != "sale" {
			t.Errorf("types = %q, want sale", got)
		}
		writeJSON(t, w, map[string]any{
			"activities": []map[string]any{
				{
					"id":       "act-1",
					"type":     "sale",
					"contract": testContract,
					"token":    map[string]any{"tokenId": "7"},
					"price": map[string]any{
						"amount": map[string]any{"decimal": 0.25},
					},
				},
				{
					"id":       "act-2",
					"type":     "transfer",
					"contract": testContract,
					"token":    map[string]any{"tokenId": "8"},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("RecentSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected only the sale-type activity, got %d records", len(sales))
	}
	if sales[0].Side != OrderSideAsk {
		t.Fatal("activity-derived sales are always ask-side")
	}
	if sales[0].OrderHash != "" {
		t.Fatal("activity records carry no order hash")
	}
}

func TestRecentSalesConvertsFills(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sales": []any{}})
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"activities": []any{}})
	})
	mux.HandleFunc("/orders/fills/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"fills": []map[string]any{
				{
					"id":        "fill-1",
					"orderHash": "0xbbb",
					"contract":  "0x424D781E0163B5A42CA2F27D036C2D5C561022C3",
					"tokenId":   "9",
					"tokenName": "Primitives #9",
					"price":     "0.8",
					"createdAt": "2026-08-01T12:00:00Z",
				},
				{
					"id":       "fill-2",
					"contract": "0x0000000000000000000000000000000000000001",
					"tokenId":  "1",
					"price":    "9.9",
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("RecentSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 fill for the target contract, got %d", len(sales))
	}

	sale := sales[0]
	if sale.Side != OrderSideBid {
		t.Fatal("fill-derived sales are bid-side")
	}
	if sale.PriceETH.String() != "0.8" {
		t.Fatalf("price = %s, want 0.8", sale.PriceETH)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !sale.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %s, want %s", sale.Timestamp, want)
	}
	if sale.CollectionName != "Primitives" {
		t.Fatalf("fills without a collection name default to Primitives, got %q", sale.CollectionName)
	}
}

func TestRecentSalesFillTimestampFallsBackToNow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sales": []any{}})
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"activities": []any{}})
	})
	mux.HandleFunc("/orders/fills/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"fills": []map[string]any{
				{"id": "fill-1", "contract": testContract, "tokenId": "9", "price": 1, "createdAt": "not-a-time"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	before := time.Now().UTC().Add(-time.Minute)
	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("RecentSales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(sales))
	}
	if sales[0].Timestamp.Before(before) {
		t.Fatalf("unparseable createdAt must fall back to the current time, got %s", sales[0].Timestamp)
	}
}

func TestRecentSalesSkipsFillsWithoutBidFlag(t *testing.T) {
	var fillsCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sales": []any{}})
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"activities": []any{}})
	})
	mux.HandleFunc("/orders/fills/v6", func(w http.ResponseWriter, r *http.Request) {
		fillsCalls.Add(1)
		writeJSON(t, w, map[string]any{
			"fills": []map[string]any{
				{"id": "fill-1", "contract": testContract, "tokenId": "9", "price": 1},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, false).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("RecentSales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales when bids are excluded, got %d", len(sales))
	}
	if fillsCalls.Load() != 0 {
		t.Fatal("fills endpoint must not be queried when bids are excluded")
	}
}

func TestRecentSalesSurvivesStrategyFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sales/v6", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/tokens/activity/v5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"activities": []map[string]any{
				{
					"id":       "act-1",
					"type":     "sale",
					"contract": testContract,
					"token":    map[string]any{"tokenId": "7"},
					"price":    map[string]any{"amount": map[string]any{"decimal": 0.1}},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("a failing strategy must not abort the chain: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected the activity fallback to produce 1 sale, got %d", len(sales))
	}
}

func TestRecentSalesAllStrategiesEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sales, err := newTestClient(srv.URL, true).RecentSales(context.Background(), 7)
	if err != nil {
		t.Fatalf("total exhaustion must not surface an error: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %d", len(sales))
	}
}

func TestTokenImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/v6", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("tokens"); got != testContract+":42" {
			t.Errorf("tokens = %q", got)
		}
		writeJSON(t, w, map[string]any{
			"tokens": []map[string]any{
				{"token": map[string]any{"image": "https://img.example/42.png"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url, err := newTestClient(srv.URL, true).TokenImage(context.Background(), testContract, "42")
	if err != nil {
		t.Fatalf("TokenImage: %v", err)
	}
	if url != "https://img.example/42.png" {
		t.Fatalf("image url = %q", url)
	}
}

func TestTokenImageMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/v6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"tokens": []any{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := newTestClient(srv.URL, true).TokenImage(context.Background(), testContract, "42"); err == nil {
		t.Fatal("missing image must return an error")
	}
}
