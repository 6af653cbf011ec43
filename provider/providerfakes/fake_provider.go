// Package providerfakes provides a scriptable provider.Provider for tests.
package providerfakes

import (
	"context"
	"sync"
	"time"

	"github.com/denis-mitin/go-identity-sdk/provider"
)

var _ provider.Provider = (*FakeProvider)(nil)

// FakeProvider returns a canned result or error after an optional delay, and
// records how it was driven.
type FakeProvider struct {
	IDValue string
	Result  provider.Result
	Err     error
	Delay   time.Duration

	mu          sync.Mutex
	beginCalls  int
	cancelCalls int
	cancelled   chan struct{}
}

// NewFakeProvider creates a fake registered under id.
func NewFakeProvider(id string) *FakeProvider {
	return &FakeProvider{IDValue: id, cancelled: make(chan struct{})}
}

func (f *FakeProvider) ID() string { return f.IDValue }

func (f *FakeProvider) BeginAuthorization(ctx context.Context) (provider.Result, error) {
	f.mu.Lock()
	f.beginCalls++
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return provider.Result{}, provider.ErrCancelled
		case <-f.cancelled:
			return provider.Result{}, provider.ErrCancelled
		}
	}
	select {
	case <-ctx.Done():
		return provider.Result{}, provider.ErrCancelled
	case <-f.cancelled:
		return provider.Result{}, provider.ErrCancelled
	default:
	}

	if f.Err != nil {
		return provider.Result{}, f.Err
	}
	res := f.Result
	if res.ProviderID == "" {
		res.ProviderID = f.IDValue
	}
	return res, nil
}

func (f *FakeProvider) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	select {
	case <-f.cancelled:
	default:
		close(f.cancelled)
	}
}

// BeginCalls reports how many times BeginAuthorization ran.
func (f *FakeProvider) BeginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginCalls
}

// CancelCalls reports how many times Cancel ran.
func (f *FakeProvider) CancelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelCalls
}
