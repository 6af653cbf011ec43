// Package flow drives the multi-step login state machine: provider selection,
// external authorization, token exchange, and session materialization. One
// flow may be active per login surface; completion always frees the surface
// and emits exactly one terminal event.
package flow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/denis-mitin/go-identity-sdk/api"
	"github.com/denis-mitin/go-identity-sdk/provider"
	"github.com/denis-mitin/go-identity-sdk/session"
)

// DefaultTimeout bounds a whole login flow unless overridden.
const DefaultTimeout = 90 * time.Second

// Event describes a flow transition. Terminal events carry either the
// materialized session or the terminating error.
type Event struct {
	FlowID  string
	Surface string
	State   State
	Err     error
	Session *session.Session
}

// Flow is one in-flight login attempt.
type Flow struct {
	id         string
	surface    string
	candidates []string

	mu         sync.Mutex
	state      State
	providerID string
	prov       provider.Provider
	result     *provider.Result
	lastErr    error

	flowCtx       context.Context
	cancel        context.CancelFunc
	userCancelled bool

	terminalOnce sync.Once
	done         chan Event
}

// ID returns the flow identifier.
func (f *Flow) ID() string { return f.id }

// Surface returns the login surface the flow occupies.
func (f *Flow) Surface() string { return f.surface }

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the terminating error, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Done yields the flow's single terminal event.
func (f *Flow) Done() <-chan Event { return f.done }

// Controller orchestrates login flows across surfaces.
type Controller struct {
	registry *provider.Registry
	sessions *session.Manager
	client   api.Client
	timeout  time.Duration
	observer func(Event)
	log      zerolog.Logger

	mu     sync.Mutex
	active map[string]*Flow
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTimeout bounds each flow end to end.
func WithTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.timeout = d }
}

// WithObserver registers a callback invoked on every flow transition,
// terminal ones included.
func WithObserver(fn func(Event)) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// WithLogger sets the controller's logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log.With().Str("component", "flow").Logger() }
}

// NewController creates a Controller.
func NewController(registry *provider.Registry, sessions *session.Manager, client api.Client, options ...ControllerOption) (*Controller, error) {
	if registry == nil {
		return nil, errors.New("flow: provider registry is required")
	}
	if sessions == nil {
		return nil, errors.New("flow: session manager is required")
	}
	if client == nil {
		return nil, errors.New("flow: api client is required")
	}

	c := &Controller{
		registry: registry,
		sessions: sessions,
		client:   client,
		timeout:  DefaultTimeout,
		log:      zerolog.Nop(),
		active:   make(map[string]*Flow),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BeginLogin starts a flow on surface, offering candidates for selection
// (empty means any registered provider). A surface with a non-terminal flow
// refuses re-entrant attempts with ErrAlreadyInProgress.
func (c *Controller) BeginLogin(ctx context.Context, surface string, candidates []string) (*Flow, error) {
	c.mu.Lock()
	if _, busy := c.active[surface]; busy {
		c.mu.Unlock()
		return nil, ErrAlreadyInProgress
	}

	flowCtx, cancel := context.WithTimeout(ctx, c.timeout)
	f := &Flow{
		id:         uuid.NewString(),
		surface:    surface,
		candidates: candidates,
		state:      StateProviderSelectionPending,
		flowCtx:    flowCtx,
		cancel:     cancel,
		done:       make(chan Event, 1),
	}
	c.active[surface] = f
	c.mu.Unlock()

	c.log.Info().Str("flowId", f.id).Str("surface", surface).Msg("login flow started")
	c.notify(f, nil)

	// Deadline and external cancellation watcher. A flow terminating
	// normally cancels flowCtx itself, which the once-guard absorbs.
	go func() {
		<-flowCtx.Done()
		f.mu.Lock()
		userCancelled := f.userCancelled
		prov := f.prov
		f.mu.Unlock()

		if prov != nil {
			prov.Cancel()
		}
		if errors.Is(flowCtx.Err(), context.DeadlineExceeded) {
			c.terminate(f, StateFailed, ErrTimeout, nil)
		} else if userCancelled {
			c.terminate(f, StateCancelled, ErrCancelled, nil)
		} else {
			c.terminate(f, StateCancelled, errors.Wrap(ErrCancelled, "context cancelled"), nil)
		}
	}()

	return f, nil
}

// SelectProvider resolves providerID and moves the flow into external
// authorization. An unresolvable provider terminates the flow.
func (c *Controller) SelectProvider(f *Flow, providerID string) error {
	f.mu.Lock()
	if f.state != StateProviderSelectionPending {
		f.mu.Unlock()
		return errors.Wrapf(ErrNotSelectable, "state %s", f.state)
	}
	if len(f.candidates) > 0 && !contains(f.candidates, providerID) {
		f.mu.Unlock()
		return errors.Wrapf(ErrNotSelectable, "provider %q not offered", providerID)
	}
	f.mu.Unlock()

	prov, err := c.registry.Resolve(providerID)
	if err != nil {
		c.terminate(f, StateFailed, err, nil)
		return err
	}

	if !c.transition(f, StateAuthorizingExternally, func() {
		f.providerID = providerID
		f.prov = prov
	}) {
		return errors.Wrap(ErrNotSelectable, "flow already terminal")
	}

	go c.run(f, prov)
	return nil
}

// CancelLogin aborts the surface's in-flight flow, if any. The abort races a
// just-completing callback deterministically: whichever terminates first
// wins, and the flow's terminal state is resolved exactly once.
func (c *Controller) CancelLogin(surface string) {
	c.mu.Lock()
	f, ok := c.active[surface]
	c.mu.Unlock()
	if !ok {
		return
	}

	f.mu.Lock()
	f.userCancelled = true
	prov := f.prov
	f.mu.Unlock()

	if prov != nil {
		prov.Cancel()
	}
	c.terminate(f, StateCancelled, ErrCancelled, nil)
}

// run executes authorization, exchange, and materialization for one flow.
func (c *Controller) run(f *Flow, prov provider.Provider) {
	res, err := prov.BeginAuthorization(f.flowCtx)
	if err != nil {
		if errors.Is(err, provider.ErrCancelled) {
			c.cancelOrTimeout(f)
			return
		}
		c.terminate(f, StateFailed, errors.Wrap(ErrProvider, err.Error()), nil)
		return
	}

	if !c.transition(f, StateExchangingToken, func() { f.result = &res }) {
		return
	}

	s, err := c.client.Exchange(f.flowCtx, res)
	if err != nil {
		if f.flowCtx.Err() != nil {
			c.cancelOrTimeout(f)
			return
		}
		c.terminate(f, StateFailed, errors.Wrap(ErrExchange, err.Error()), nil)
		return
	}

	if !c.transition(f, StateSessionMaterializing, nil) {
		return
	}

	if err := c.sessions.SetSession(f.flowCtx, *s); err != nil {
		c.terminate(f, StateFailed, errors.Wrap(ErrPersistence, err.Error()), nil)
		return
	}

	c.terminate(f, StateCompleted, nil, s)
}

// cancelOrTimeout maps an aborted step to the right terminal state.
func (c *Controller) cancelOrTimeout(f *Flow) {
	if errors.Is(f.flowCtx.Err(), context.DeadlineExceeded) {
		c.terminate(f, StateFailed, ErrTimeout, nil)
		return
	}
	c.terminate(f, StateCancelled, ErrCancelled, nil)
}

// transition advances a non-terminal flow and notifies observers. Returns
// false when the flow already terminated.
func (c *Controller) transition(f *Flow, next State, apply func()) bool {
	f.mu.Lock()
	if f.state.Terminal() {
		f.mu.Unlock()
		return false
	}
	f.state = next
	if apply != nil {
		apply()
	}
	f.mu.Unlock()

	c.log.Debug().Str("flowId", f.id).Str("state", next.String()).Msg("flow transition")
	c.notify(f, nil)
	return true
}

// terminate settles the flow exactly once: final state, surface release, and
// the single terminal event.
func (c *Controller) terminate(f *Flow, final State, err error, s *session.Session) {
	f.terminalOnce.Do(func() {
		f.mu.Lock()
		f.state = final
		f.lastErr = err
		f.mu.Unlock()
		f.cancel()

		c.mu.Lock()
		delete(c.active, f.surface)
		c.mu.Unlock()

		event := Event{FlowID: f.id, Surface: f.surface, State: final, Err: err, Session: s}
		if err != nil {
			c.log.Info().Str("flowId", f.id).Str("state", final.String()).Err(err).Msg("login flow ended")
		} else {
			c.log.Info().Str("flowId", f.id).Str("state", final.String()).Msg("login flow ended")
		}
		if c.observer != nil {
			c.observer(event)
		}
		f.done <- event
	})
}

// notify reports a non-terminal transition to the observer.
func (c *Controller) notify(f *Flow, err error) {
	if c.observer == nil {
		return
	}
	f.mu.Lock()
	event := Event{FlowID: f.id, Surface: f.surface, State: f.state, Err: err}
	f.mu.Unlock()
	c.observer(event)
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
