package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ScriptContext is the delivery side of the bridge: the embedded web view
// that responses and events are injected into.
type ScriptContext interface {
	DeliverResponse(Response)
	DeliverEvent(Event)
}

// Handler resolves one bridge request. Handlers may block (network, storage);
// the dispatcher runs each on its own goroutine so one pending call never
// stalls the context's other traffic.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// ParamCheck validates a request's parameter shape before dispatch.
type ParamCheck func(params map[string]any) error

type registration struct {
	handler  Handler
	validate ParamCheck
}

// pendingCall tracks one outstanding request. resolved flips exactly once.
type pendingCall struct {
	callbackID string
	resolved   atomic.Bool
}

// Dispatcher frames, validates and dispatches bridge traffic for one script
// context. Outstanding calls settle independently, each exactly once; events
// are delivered in emission order.
type Dispatcher struct {
	script      ScriptContext
	log         zerolog.Logger
	callTimeout time.Duration

	mu         sync.Mutex
	handlers   map[Action]registration
	namespaces map[string]struct{}
	closed     bool

	pending *ttlcache.Cache[string, *pendingCall]

	// eventMu keeps event delivery in emission order.
	eventMu sync.Mutex
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCallTimeout bounds how long a single call may stay pending before it is
// resolved with a cancellation error. Defaults to 60s.
func WithCallTimeout(d time.Duration) DispatcherOption {
	return func(b *Dispatcher) { b.callTimeout = d }
}

// WithLogger sets the dispatcher's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) DispatcherOption {
	return func(b *Dispatcher) { b.log = log.With().Str("component", "bridge").Logger() }
}

// NewDispatcher creates a dispatcher bound to one script context.
func NewDispatcher(script ScriptContext, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		script:      script,
		log:         zerolog.Nop(),
		callTimeout: 60 * time.Second,
		handlers:    make(map[Action]registration),
		namespaces:  make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(d)
	}

	d.pending = ttlcache.New(
		ttlcache.WithTTL[string, *pendingCall](d.callTimeout),
		ttlcache.WithDisableTouchOnHit[string, *pendingCall](),
	)
	d.pending.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *pendingCall]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		d.deliver(item.Value(), Response{
			CallbackID: item.Value().callbackID,
			Error:      errorPayload(errors.Wrap(ErrCancelled, "call deadline exceeded")),
		})
	})
	go d.pending.Start()

	return d
}

// Register adds an action to the allow-list. validate may be nil for actions
// without required parameters.
func (d *Dispatcher) Register(action Action, validate ParamCheck, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = registration{handler: handler, validate: validate}
}

// HandleMessage ingests one raw envelope from the script context. Malformed
// traffic that cannot be answered is dropped with a diagnostic; everything
// else is guaranteed a response.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.log.Warn().Err(err).Msg("dropping malformed bridge message")
		return
	}
	if msg.CallbackID == "" {
		d.log.Warn().Str("action", string(msg.Action)).Msg("dropping bridge request without callbackId")
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.script.DeliverResponse(Response{
			CallbackID: msg.CallbackID,
			Error:      errorPayload(errors.Wrap(ErrCancelled, "bridge context torn down")),
		})
		return
	}
	reg, supported := d.handlers[msg.Action]
	d.mu.Unlock()

	if !supported {
		d.log.Warn().Str("action", string(msg.Action)).Msg("unsupported bridge action")
		d.script.DeliverResponse(Response{
			CallbackID: msg.CallbackID,
			Error:      errorPayload(errors.Wrapf(ErrUnsupportedAction, "%s", msg.Action)),
		})
		return
	}

	if reg.validate != nil {
		if err := reg.validate(msg.Params); err != nil {
			d.script.DeliverResponse(Response{
				CallbackID: msg.CallbackID,
				Error:      errorPayload(err),
			})
			return
		}
	}

	// Insertion is guarded so a reused callbackId cannot slip in while its
	// original call is still outstanding.
	call := &pendingCall{callbackID: msg.CallbackID}
	d.mu.Lock()
	if d.pending.Get(msg.CallbackID) != nil {
		d.mu.Unlock()
		d.log.Warn().Str("callbackId", msg.CallbackID).Msg("rejecting reused callbackId")
		d.script.DeliverResponse(Response{
			CallbackID: msg.CallbackID,
			Error:      errorPayload(errors.Wrap(ErrCallPending, msg.CallbackID)),
		})
		return
	}
	d.pending.Set(msg.CallbackID, call, ttlcache.DefaultTTL)
	d.mu.Unlock()

	go func() {
		result, err := reg.handler(ctx, msg.Params)
		resp := Response{CallbackID: msg.CallbackID}
		if err != nil {
			resp.Error = errorPayload(err)
		} else {
			if result == nil {
				result = map[string]any{}
			}
			resp.Result = result
		}
		d.resolve(call, resp)
	}()
}

// Emit pushes an unsolicited event into the script context. Events are
// delivered in emission order; a torn-down context drops them.
func (d *Dispatcher) Emit(event Event) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	d.script.DeliverEvent(event)
}

// RegisterNamespace subscribes the context to namespace-scoped session
// events, backing the register_for_namespace_events action.
func (d *Dispatcher) RegisterNamespace(namespace string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.namespaces[namespace] = struct{}{}
}

// Namespaces returns the namespaces the context subscribed to.
func (d *Dispatcher) Namespaces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.namespaces))
	for ns := range d.namespaces {
		out = append(out, ns)
	}
	return out
}

// Close tears the context down: every outstanding callback is resolved with a
// cancellation error, never left unresolved.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	for _, item := range d.pending.Items() {
		d.deliver(item.Value(), Response{
			CallbackID: item.Value().callbackID,
			Error:      errorPayload(errors.Wrap(ErrCancelled, "bridge context torn down")),
		})
	}
	d.pending.Stop()
	d.pending.DeleteAll()
}

// resolve settles a tracked call through the pending table.
func (d *Dispatcher) resolve(call *pendingCall, resp Response) {
	if d.deliver(call, resp) {
		d.pending.Delete(call.callbackID)
	}
}

// deliver performs the exactly-once handoff to the script context.
func (d *Dispatcher) deliver(call *pendingCall, resp Response) bool {
	if !call.resolved.CompareAndSwap(false, true) {
		return false
	}
	d.script.DeliverResponse(resp)
	return true
}
