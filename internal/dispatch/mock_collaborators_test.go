package dispatch

import (
	"context"
	"sync"

	"github.com/sahajverma/storeping/internal/notify"
	"github.com/sahajverma/storeping/internal/shop"
)

// fakeSender records sends and can simulate provider failures.
type fakeSender struct {
	mu    sync.Mutex
	sends []notify.SendRequest
	err   error
}

func (f *fakeSender) Send(ctx context.Context, req notify.SendRequest) (*notify.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sends = append(f.sends, req)
	return &notify.SendResult{MessageID: "msg", Status: "accepted"}, nil
}

func (f *fakeSender) sent() []notify.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.SendRequest, len(f.sends))
	copy(out, f.sends)
	return out
}

// fakeShop answers conversion checks and contact lookups from fixed maps.
type fakeShop struct {
	mu        sync.Mutex
	converted map[string]bool
	contacts  map[string]shop.Contact
	err       error
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		converted: map[string]bool{},
		contacts:  map[string]shop.Contact{},
	}
}

func (f *fakeShop) CheckoutConverted(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.converted[token], nil
}

func (f *fakeShop) OrderContact(ctx context.Context, orderID string) (shop.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return shop.Contact{}, f.err
	}
	return f.contacts[orderID], nil
}
