// Package apifakes provides a scriptable api.Client for tests.
package apifakes

import (
	"context"
	"sync"

	"github.com/denis-mitin/go-identity-sdk/api"
	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/session"
)

var _ api.Client = (*FakeClient)(nil)

// SendCall records one relayed API call.
type SendCall struct {
	Method string
	Params map[string]any
	OAuth  bool
}

// FakeClient returns canned results and records calls.
type FakeClient struct {
	ExchangeResult *session.Session
	ExchangeErr    error
	SendResult     map[string]any
	SendErr        error

	mu            sync.Mutex
	exchangeCalls []provider.Result
	sendCalls     []SendCall
}

// NewFakeClient creates an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Exchange(_ context.Context, res provider.Result) (*session.Session, error) {
	f.mu.Lock()
	f.exchangeCalls = append(f.exchangeCalls, res)
	f.mu.Unlock()

	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	if f.ExchangeResult == nil {
		return nil, api.ErrBackendUnavailable
	}
	copied := *f.ExchangeResult
	return &copied, nil
}

func (f *FakeClient) Send(_ context.Context, method string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, SendCall{Method: method, Params: params})
	f.mu.Unlock()

	if f.SendErr != nil {
		return nil, f.SendErr
	}
	return f.SendResult, nil
}

func (f *FakeClient) SendOAuth(_ context.Context, method string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, SendCall{Method: method, Params: params, OAuth: true})
	f.mu.Unlock()

	if f.SendErr != nil {
		return nil, f.SendErr
	}
	return f.SendResult, nil
}

// ExchangeCalls returns the recorded exchange inputs.
func (f *FakeClient) ExchangeCalls() []provider.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Result(nil), f.exchangeCalls...)
}

// SendCalls returns the recorded relay calls.
func (f *FakeClient) SendCalls() []SendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendCall(nil), f.sendCalls...)
}
