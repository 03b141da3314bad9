package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// EngineMode is the current primary/secondary routing mode.
type EngineMode string

const (
	ModePrimary   EngineMode = "PRIMARY"
	ModeSecondary EngineMode = "SECONDARY"
)

// PrimaryEngine is the external, optimized analytics backend. Its failure
// modes (transport, timeout, malformed reply) all count the same way
// against the consecutive-failure budget.
type PrimaryEngine interface {
	ProcessSnapshot(ctx context.Context, snap Snapshot) (EnrichedSnapshot, error)
}

// ErrPrimaryUnavailable is returned by Call when the mode is SECONDARY or
// no primary client has been published yet.
var ErrPrimaryUnavailable = errors.New("primary engine unavailable")

// EngineRouter holds {mode, primaryClient} behind one writer lock and
// wraps every primary call in a gobreaker circuit breaker, exactly the way
// the teacher wraps external calls in infra/breakers. Readers take a
// snapshot of mode/client; they never observe a half-initialized client.
type EngineRouter struct {
	mu      sync.RWMutex
	mode    EngineMode
	primary PrimaryEngine
	breaker *gobreaker.CircuitBreaker

	maxFailures         int
	consecutiveFailures int
	callTimeout         time.Duration
}

// NewEngineRouter returns a router starting in SECONDARY mode; callers must
// call Initialize to publish a primary client (Switch only changes the mode).
func NewEngineRouter(maxFailures int, callTimeout time.Duration) *EngineRouter {
	st := gobreaker.Settings{
		Name:     "primary-engine",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	}
	return &EngineRouter{
		mode:        ModeSecondary,
		breaker:     gobreaker.NewCircuitBreaker(st),
		maxFailures: maxFailures,
		callTimeout: callTimeout,
	}
}

// Initialize probes the primary with a canned snapshot; only on success
// does it commit mode=PRIMARY and publish the client.
func (r *EngineRouter) Initialize(ctx context.Context, client PrimaryEngine, probe Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	if _, err := client.ProcessSnapshot(ctx, probe); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = client
	r.mode = ModePrimary
	r.consecutiveFailures = 0
	return nil
}

// Switch performs a manual, atomic transition to the given target mode.
func (r *EngineRouter) Switch(target EngineMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = target
	if target == ModePrimary {
		r.consecutiveFailures = 0
	}
}

// snapshotState is an immutable read of {mode, client}.
type snapshotState struct {
	mode    EngineMode
	primary PrimaryEngine
}

func (r *EngineRouter) snapshot() snapshotState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotState{mode: r.mode, primary: r.primary}
}

// Call invokes the primary engine through the circuit breaker and the
// router's configured timeout. On any failure it increments the
// consecutive-failure counter and, at F_max, demotes mode to SECONDARY
// permanently (until a manual Switch re-enables it).
func (r *EngineRouter) Call(ctx context.Context, snap Snapshot) (EnrichedSnapshot, error) {
	st := r.snapshot()
	if st.mode != ModePrimary || st.primary == nil {
		return EnrichedSnapshot{}, ErrPrimaryUnavailable
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
		return st.primary.ProcessSnapshot(callCtx, snap)
	})

	if err != nil {
		r.recordFailure()
		return EnrichedSnapshot{}, err
	}
	r.recordSuccess()
	return result.(EnrichedSnapshot), nil
}

func (r *EngineRouter) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures++
	if r.consecutiveFailures >= r.maxFailures {
		r.mode = ModeSecondary
	}
}

func (r *EngineRouter) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures = 0
}

// Status backs the /engine/status read surface.
type Status struct {
	Mode                EngineMode `json:"mode"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	MaxFailures         int        `json:"max_failures"`
	PrimaryAvailable    bool       `json:"primary_available"`
}

func (r *EngineRouter) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Mode:                r.mode,
		ConsecutiveFailures: r.consecutiveFailures,
		MaxFailures:         r.maxFailures,
		PrimaryAvailable:    r.primary != nil,
	}
}
