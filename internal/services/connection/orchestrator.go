// Package connection manages the lazily opened, shared collection handle.
//
// An Orchestrator owns one connection cycle at a time. The first caller that
// finds it disconnected runs the connect pipeline (open, resolve collection,
// authenticate, provision indices); callers arriving while that attempt is in
// flight queue behind it and are all released with the same outcome once the
// attempt resolves.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/core/metrics"
	"github.com/unifiedui/docstore/internal/domain/models"
)

// DefaultConnectTimeout bounds a whole connect pipeline.
const DefaultConnectTimeout = 30 * time.Second

// ErrReleased is returned to every caller of an attempt that was released
// before it resolved.
var ErrReleased = errors.New("connection released while connecting")

// Metric names emitted by the orchestrator.
const (
	MetricOpenConnection  = "open-connection"
	MetricCloseConnection = "close-connection"
)

// State is the connection state of an orchestrator.
type State int

const (
	// StateDisconnected means no handle is available and no attempt is running.
	StateDisconnected State = iota
	// StateConnecting means a connect pipeline is in flight.
	StateConnecting
	// StateConnected means the handle is ready.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the orchestrator configuration.
type Config struct {
	// Connector is the transport. It may be a pre-existing instance shared
	// with other code; the orchestrator only opens and closes it.
	Connector docdb.Connector
	// CollectionName is the logical collection served by the orchestrator.
	CollectionName string
	// Credentials, when set, are verified after the transport opens.
	Credentials *docdb.Credentials
	// Indices are provisioned in parallel on every connection cycle.
	Indices []models.IndexSpec
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	// Metrics must already be scoped by the caller; defaults to a no-op sink.
	Metrics metrics.Sink
	// ConnectTimeout bounds the connect pipeline. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// result is the outcome of one connect attempt.
type result struct {
	handle docdb.Collection
	err    error
}

// Orchestrator serializes connection attempts and hands out the shared
// collection handle.
type Orchestrator struct {
	connector      docdb.Connector
	collectionName string
	credentials    *docdb.Credentials
	indices        []models.IndexSpec
	logger         zerolog.Logger
	metrics        metrics.Sink
	connectTimeout time.Duration

	// mu guards state, waiters, handle and attempt. It is never held across I/O.
	mu      sync.Mutex
	state   State
	waiters []chan result
	handle  docdb.Collection
	// attempt is bumped when an attempt starts and when Release cancels it.
	attempt uint64
}

// NewOrchestrator creates a disconnected orchestrator.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Credentials != nil && cfg.Credentials.Username == "" {
		return nil, fmt.Errorf("credentials require a username")
	}
	for i, idx := range cfg.Indices {
		if len(idx.Keys) == 0 {
			return nil, fmt.Errorf("index %d has no keys", i)
		}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.NewNoOp()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	return &Orchestrator{
		connector:      cfg.Connector,
		collectionName: cfg.CollectionName,
		credentials:    cfg.Credentials,
		indices:        append([]models.IndexSpec(nil), cfg.Indices...),
		logger:         logger.With().Str("collection", cfg.CollectionName).Logger(),
		metrics:        sink,
		connectTimeout: timeout,
		state:          StateDisconnected,
	}, nil
}

// State returns the current connection state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Acquire returns the ready collection handle, connecting first if needed.
// Concurrent callers share a single connect attempt and all receive its
// outcome. A failed attempt leaves the orchestrator disconnected, so the
// next call tries again.
//
// An attempt in flight is not cancelled by ctx: its pipeline runs under
// ConnectTimeout, and every queued caller waits for it to resolve.
func (o *Orchestrator) Acquire(ctx context.Context) (docdb.Collection, error) {
	o.mu.Lock()
	switch o.state {
	case StateConnected:
		// waiters is always empty here: resolve clears it on every transition.
		handle := o.handle
		o.mu.Unlock()
		return handle, nil
	case StateConnecting:
		wait := make(chan result, 1)
		o.waiters = append(o.waiters, wait)
		o.mu.Unlock()
		r := <-wait
		return r.handle, r.err
	}

	// Disconnected: this caller runs the pipeline and is the first waiter.
	o.state = StateConnecting
	o.attempt++
	attempt := o.attempt
	wait := make(chan result, 1)
	o.waiters = append(o.waiters, wait)
	o.mu.Unlock()

	handle, err := o.connect(ctx)
	o.resolve(ctx, attempt, handle, err)

	r := <-wait
	return r.handle, r.err
}

// Connect is the callback form of Acquire. cb is invoked exactly once.
func (o *Orchestrator) Connect(ctx context.Context, cb func(err error, handle docdb.Collection)) {
	handle, err := o.Acquire(ctx)
	cb(err, handle)
}

// resolve records the outcome of the attempt and releases every waiter in
// arrival order with the identical result. An attempt released while in
// flight has its transport closed and resolves with ErrReleased unless the
// pipeline already failed; callers queued behind it share that result.
func (o *Orchestrator) resolve(ctx context.Context, attempt uint64, handle docdb.Collection, err error) {
	o.mu.Lock()
	if attempt != o.attempt {
		// Still connecting, so no new attempt can open the transport meanwhile.
		o.mu.Unlock()
		o.logger.Debug().Msg("connection released while connecting")
		o.closeTransport(ctx)
		handle = nil
		if err == nil {
			err = ErrReleased
		}
		o.mu.Lock()
	}

	if err != nil {
		o.state = StateDisconnected
		o.handle = nil
	} else {
		o.state = StateConnected
		o.handle = handle
	}
	waiters := o.waiters
	o.waiters = nil
	o.mu.Unlock()

	r := result{handle: handle, err: err}
	for _, w := range waiters {
		w <- r
	}
}

// connect runs the pipeline: open, resolve the collection, authenticate,
// provision indices. Steps run strictly in that order. A failure after the
// transport opened closes it again.
func (o *Orchestrator) connect(parent context.Context) (docdb.Collection, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.connectTimeout)
	defer cancel()

	start := time.Now()
	err := o.connector.Open(ctx)
	o.metrics.Timing(MetricOpenConnection, start)
	if err != nil {
		o.logger.Debug().Err(err).Msg("failed to open connection with db")
		o.metrics.Increment(MetricOpenConnection + ".failure")
		return nil, err
	}

	handle, err := o.connector.Collection(o.collectionName)
	if err != nil {
		o.logger.Error().Err(err).Msg("error getting collection")
		o.closeTransport(ctx)
		return nil, err
	}

	o.metrics.Increment(MetricOpenConnection + ".success")
	o.logger.Debug().Msg("connection opened successfully with db")

	if o.credentials != nil {
		o.logger.Debug().Str("user", o.credentials.Username).Msg("authenticating to db")
		if err := o.connector.Authenticate(ctx, *o.credentials); err != nil {
			o.logger.Error().Err(err).Str("user", o.credentials.Username).Msg("authentication failed")
			o.closeTransport(ctx)
			return nil, err
		}
	} else {
		o.logger.Debug().Msg("no db authentication being used")
	}

	if len(o.indices) == 0 {
		o.logger.Debug().Msg("no indices on this collection")
		return handle, nil
	}

	o.logger.Debug().Int("count", len(o.indices)).Msg("ensuring indices on collection")
	if err := o.ensureIndices(ctx, handle); err != nil {
		o.logger.Error().Err(err).Msg("error ensuring indices on collection")
		o.closeTransport(ctx)
		return nil, err
	}
	o.logger.Debug().Msg("successfully ensured indices on collection")

	return handle, nil
}

// ensureIndices creates every configured index concurrently and waits for
// all of them. The first error observed is returned.
func (o *Orchestrator) ensureIndices(ctx context.Context, handle docdb.Collection) error {
	var g errgroup.Group
	for _, idx := range o.indices {
		idx := idx
		g.Go(func() error {
			return handle.CreateIndex(ctx, idx)
		})
	}
	return g.Wait()
}

// closeTransport closes the transport after a failed or released attempt.
func (o *Orchestrator) closeTransport(ctx context.Context) {
	if !o.connector.IsConnected() {
		return
	}
	if err := o.connector.Close(context.WithoutCancel(ctx)); err != nil {
		o.logger.Warn().Err(err).Msg("failed to close connection after aborted attempt")
	}
}

// Release closes the transport if it reports itself connected and resets the
// orchestrator to disconnected. An attempt in flight is cancelled: it
// resolves with ErrReleased once its pipeline returns, and the next Acquire
// starts afresh.
func (o *Orchestrator) Release(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateConnecting {
		o.attempt++
	}
	released := o.handle
	o.mu.Unlock()

	var err error
	if o.connector.IsConnected() {
		o.metrics.Increment(MetricCloseConnection)
		err = o.connector.Close(ctx)
	}

	o.mu.Lock()
	if o.state == StateConnected && o.handle == released {
		o.state = StateDisconnected
		o.handle = nil
	}
	o.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Ping verifies the transport when connected.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if o.State() != StateConnected {
		return fmt.Errorf("collection %s is %s", o.collectionName, o.State())
	}
	return o.connector.Ping(ctx)
}

// CollectionName returns the collection served by this orchestrator.
func (o *Orchestrator) CollectionName() string {
	return o.collectionName
}
