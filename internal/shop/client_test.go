package shop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckoutConverted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "tok" {
			t.Errorf("missing access token")
		}
		switch r.URL.Path {
		case "/admin/checkouts/cart-done.json":
			w.Write([]byte(`{"checkout":{"completed_at":"2026-08-01T10:00:00Z"}}`))
		case "/admin/checkouts/cart-open.json":
			w.Write([]byte(`{"checkout":{"completed_at":null}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok")
	ctx := context.Background()

	converted, err := c.CheckoutConverted(ctx, "cart-done")
	if err != nil || !converted {
		t.Fatalf("expected converted=true, got %v err=%v", converted, err)
	}
	converted, err = c.CheckoutConverted(ctx, "cart-open")
	if err != nil || converted {
		t.Fatalf("expected converted=false, got %v err=%v", converted, err)
	}
	if _, err := c.CheckoutConverted(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown checkout")
	}
}

func TestOrderContact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/orders/1001.json":
			w.Write([]byte(`{"order":{"phone":"","customer":{"phone":"+14155550100","first_name":"Maya","locale":"en"}}}`))
		case "/admin/orders/1002.json":
			w.Write([]byte(`{"order":{"phone":"+442071838750","customer":{"phone":"","first_name":"Tom","locale":"en-GB"}}}`))
		case "/admin/orders/1003.json":
			w.Write([]byte(`{"order":{"phone":"","customer":{"phone":"","first_name":"Ghost","locale":""}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok")
	ctx := context.Background()

	contact, err := c.OrderContact(ctx, "1001")
	if err != nil {
		t.Fatalf("OrderContact: %v", err)
	}
	if contact.Phone != "+14155550100" || contact.FirstName != "Maya" {
		t.Fatalf("customer phone fallback failed: %+v", contact)
	}

	contact, err = c.OrderContact(ctx, "1002")
	if err != nil || contact.Phone != "+442071838750" {
		t.Fatalf("order-level phone should win: %+v err=%v", contact, err)
	}

	contact, err = c.OrderContact(ctx, "1003")
	if err != nil {
		t.Fatalf("OrderContact: %v", err)
	}
	if contact.Phone != "" {
		t.Fatalf("expected empty phone for contactless order, got %+v", contact)
	}
}
