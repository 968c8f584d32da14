package cart

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPBackendGetCart(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCount int
		wantErr   error
		anyErr    bool
	}{
		{
			name:      "envelope",
			status:    http.StatusOK,
			body:      `{"success":true,"data":[{"productId":1,"productName":"Tea","quantity":2,"price":50000},{"productId":"2","productName":"Matcha","quantity":1,"price":120000}]}`,
			wantCount: 3,
		},
		{
			name:      "bare array",
			status:    http.StatusOK,
			body:      `[{"productId":1,"productName":"Tea","quantity":2,"price":50000}]`,
			wantCount: 2,
		},
		{name: "empty data", status: http.StatusOK, body: `{"success":true,"data":null}`},
		{name: "no cart yet", status: http.StatusNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "server error", status: http.StatusInternalServerError, anyErr: true},
		{name: "envelope error", status: http.StatusOK, body: `{"success":false,"error":"boom"}`, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			b := NewHTTPBackend(srv.URL, time.Second)
			b.SetTokenSource(func() string { return "tok" })

			items, err := b.GetCart(context.Background(), "u1")
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			case tt.anyErr:
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			case err != nil:
				t.Fatalf("GetCart: %v", err)
			}

			n := 0
			for _, it := range items {
				n += it.Quantity
			}
			if n != tt.wantCount {
				t.Errorf("quantity = %d, want %d", n, tt.wantCount)
			}
			if gotAuth != "Bearer tok" || gotPath != "/api/v1/carts/u1" {
				t.Errorf("request auth=%q path=%q", gotAuth, gotPath)
			}
		})
	}
}

func TestHTTPBackendPreservesOrderAndIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"productId":2,"productName":"Matcha","quantity":1,"price":120000},{"productId":"p-1","productName":"Tea","quantity":2,"price":50000}]`)
	}))
	defer srv.Close()

	items, err := NewHTTPBackend(srv.URL, time.Second).GetCart(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(items) != 2 || items[0].ProductID != "2" || items[1].ProductID != "p-1" || items[0].UnitPrice != 120000 {
		t.Errorf("items = %+v", items)
	}
}

func TestHTTPBackendLogout(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewHTTPBackend(srv.URL, time.Second).Logout(context.Background(), "u1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if method != http.MethodPost || path != "/api/v1/auth/logout" {
		t.Errorf("got %s %s", method, path)
	}
}
