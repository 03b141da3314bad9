package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PlaybackStateKind enumerates the playback lifecycle states.
type PlaybackStateKind string

const (
	Stopped PlaybackStateKind = "STOPPED"
	Playing PlaybackStateKind = "PLAYING"
	Paused  PlaybackStateKind = "PAUSED"
)

const (
	inactivityTimeout = 30 * time.Minute
	maxSpeed          = 100
)

// ErrRewindUnsupported is returned by GoBack when the playback source does
// not support rewind.
var ErrRewindUnsupported = errors.New("playback source does not support rewind")

// Client is the narrow outbound interface a SessionRuntime broadcasts to.
// Transport adapters (WebSocket, etc.) implement this.
type Client interface {
	Send(EnrichedSnapshot) error
}

// RewindSource optionally supports playback rewind.
type RewindSource interface {
	SupportsRewind() bool
}

// OutboundItem pairs an enriched snapshot with its measured processing
// time, as pushed onto the outbound queue by the analytics worker.
type OutboundItem struct {
	Enriched      EnrichedSnapshot
	ProcessingMS  float64
}

// SessionMetrics are the process-observable counters for one session.
type SessionMetrics struct {
	QueueBackpressure int64
	QueueFull         int64
	BroadcastFailures int64
}

// PlaybackState is the control-surface-visible playback state.
type PlaybackState struct {
	State        PlaybackStateKind
	Speed        int
	CursorTS     time.Time
	CreatedAt    time.Time
	LastActivity time.Time
}

// Session owns all per-session mutable state described in spec §3: the
// incremental/regime/trade/detector/alert state (via its Pipeline), the
// playback state, and the bounded ingest/outbound queues. Exactly one
// analytics worker writes the hot-path state; the broadcaster is the sole
// reader of the outbound queue.
type Session struct {
	ID string

	processor  *SnapshotProcessor
	scheduler  *AdaptiveScheduler
	client     Client
	rewind     RewindSource
	audit      AuditSink
	collector  *Collector
	cache      *AggregateCache

	ingestCh   chan Snapshot
	outboundCh chan OutboundItem

	producerLimiter *rate.Limiter
	backpressureHi  int

	dataBuffer     []EnrichedSnapshot
	dataBufferCap  int
	dataBufferMu   sync.Mutex

	playback   PlaybackState
	playbackMu sync.Mutex

	metrics SessionMetrics

	ctx    context.Context
	cancel context.CancelFunc
	active atomic.Bool
	wg     sync.WaitGroup
}

// NewSession allocates per-session state and returns a Session not yet
// started; call Start to spawn its worker and broadcaster. collector and
// cache may each be nil, in which case this session never reports metrics
// or publishes to the aggregate read surface, respectively.
func NewSession(cfg Config, processor *SnapshotProcessor, client Client, rewind RewindSource, audit AuditSink, collector *Collector, cache *AggregateCache) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		ID:              uuid.NewString(),
		processor:       processor,
		scheduler:       NewAdaptiveScheduler(float64(cfg.SlowThresholdMS)),
		client:          client,
		rewind:          rewind,
		audit:           audit,
		collector:       collector,
		cache:           cache,
		ingestCh:        make(chan Snapshot, cfg.QueueInSize),
		outboundCh:      make(chan OutboundItem, cfg.QueueOutSize),
		producerLimiter: rate.NewLimiter(rate.Every(5*time.Millisecond), 1),
		backpressureHi:  int(0.75 * float64(cfg.QueueInSize)),
		dataBufferCap:   cfg.DataBufferSize,
		playback: PlaybackState{
			State:        Stopped,
			Speed:        1,
			CreatedAt:    now,
			LastActivity: now,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.active.Store(true)
	return s
}

// Start spawns the analytics worker and the broadcaster.
func (s *Session) Start() {
	s.wg.Add(2)
	go s.runWorker()
	go s.runBroadcaster()
}

// Stop terminates the session's cooperative tasks and discards any
// pending queue items.
func (s *Session) Stop() {
	s.active.Store(false)
	s.cancel()
	s.wg.Wait()
}

// IsActive reports whether the session's workers should keep running; it
// is the narrow lifecycle interface workers hold instead of a full
// back-reference to Session.
func (s *Session) IsActive() bool { return s.active.Load() }

// Metrics returns a snapshot of this session's counters.
func (s *Session) Metrics() SessionMetrics {
	return SessionMetrics{
		QueueBackpressure: atomic.LoadInt64(&s.metrics.QueueBackpressure),
		QueueFull:         atomic.LoadInt64(&s.metrics.QueueFull),
		BroadcastFailures: atomic.LoadInt64(&s.metrics.BroadcastFailures),
	}
}

// Ingest is called by the external producer (out of core scope) to push a
// raw snapshot. It applies the §4.H backpressure policy: above the 75%
// watermark the producer is asked to skip (returns false, backpressure
// counted); a full queue drops the item and counts it.
func (s *Session) Ingest(snap Snapshot) (accepted bool) {
	s.touchActivity()

	if len(s.ingestCh) > s.backpressureHi {
		atomic.AddInt64(&s.metrics.QueueBackpressure, 1)
		if s.collector != nil {
			s.collector.RecordSessionCounters(SessionMetrics{QueueBackpressure: 1})
		}
		_ = s.producerLimiter.Wait(s.ctx) // throttle delay before the caller may retry
		return false
	}

	select {
	case s.ingestCh <- snap:
		return true
	default:
		atomic.AddInt64(&s.metrics.QueueFull, 1)
		if s.collector != nil {
			s.collector.RecordSessionCounters(SessionMetrics{QueueFull: 1})
		}
		return false
	}
}

func (s *Session) runWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case snap, ok := <-s.ingestCh:
			if !ok {
				return
			}
			if !s.IsActive() {
				return
			}
			if !s.scheduler.ShouldProcess() {
				continue // skipped tick: state is not updated
			}

			start := time.Now()
			enriched, alerts, accepted := s.processor.Process(s.ctx, time.Now(), snap)
			processingMS := float64(time.Since(start).Microseconds()) / 1000.0
			s.scheduler.Observe(processingMS)
			if !accepted {
				continue
			}

			if s.collector != nil {
				s.collector.RecordTick(enriched.Engine, alerts, processingMS)
			}
			if s.audit != nil && len(alerts) > 0 {
				go s.writeAudit(alerts)
			}

			select {
			case s.outboundCh <- OutboundItem{Enriched: enriched, ProcessingMS: processingMS}:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func (s *Session) runBroadcaster() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case item, ok := <-s.outboundCh:
			if !ok {
				return
			}
			s.appendDataBuffer(item.Enriched)
			if s.cache != nil {
				go s.publishCache(item.Enriched)
			}
			if s.client == nil {
				continue
			}
			if err := s.client.Send(item.Enriched); err != nil {
				atomic.AddInt64(&s.metrics.BroadcastFailures, 1)
				if s.collector != nil {
					s.collector.RecordSessionCounters(SessionMetrics{BroadcastFailures: 1})
				}
			}
		}
	}
}

// publishCache mirrors this tick's enriched view onto the process-wide
// aggregate read surface. Best-effort: failures are dropped, never
// retried, never block the broadcaster (mirrors BroadcasterSendFailure
// policy).
func (s *Session) publishCache(e EnrichedSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.cache.PublishLatestSnapshot(ctx, e)
	_ = s.cache.PublishFeatures(ctx, FeatureSummary{
		Spread:          e.Spread,
		OBI:             e.OBI,
		OFINormalized:   e.OFINormalized,
		DirectionalProb: e.DirectionalProb,
		Regime:          e.Regime,
		RegimeLabel:     e.RegimeLabel,
		VPIN:            e.VPIN,
	})
	counts := make(map[string]int, len(e.Anomalies))
	for _, a := range e.Anomalies {
		counts[a.Type]++
	}
	_ = s.cache.PublishAnomalySummary(ctx, AnomalySummary{CountsByType: counts})
}

// writeAudit mirrors this tick's accepted alerts to the audit sink.
// Best-effort: failures are dropped, never retried, never block the hot
// path (mirrors BroadcasterSendFailure policy).
func (s *Session) writeAudit(alerts []Alert) {
	entries := make([]AuditEntry, len(alerts))
	for i, a := range alerts {
		entries[i] = AuditEntry{Timestamp: a.Timestamp, Type: a.Type, Severity: a.Severity, Message: a.Message}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.audit.WriteAudit(ctx, s.ID, entries)
}

func (s *Session) appendDataBuffer(e EnrichedSnapshot) {
	s.dataBufferMu.Lock()
	defer s.dataBufferMu.Unlock()
	s.dataBuffer = append(s.dataBuffer, e)
	if len(s.dataBuffer) > s.dataBufferCap {
		s.dataBuffer = s.dataBuffer[len(s.dataBuffer)-s.dataBufferCap:]
	}
}

// DataBuffer returns a copy of the bounded outbound data buffer.
func (s *Session) DataBuffer() []EnrichedSnapshot {
	s.dataBufferMu.Lock()
	defer s.dataBufferMu.Unlock()
	out := make([]EnrichedSnapshot, len(s.dataBuffer))
	copy(out, s.dataBuffer)
	return out
}

func (s *Session) clearDataBuffer() {
	s.dataBufferMu.Lock()
	defer s.dataBufferMu.Unlock()
	s.dataBuffer = nil
}

func (s *Session) touchActivity() {
	s.playbackMu.Lock()
	s.playback.LastActivity = time.Now()
	s.playbackMu.Unlock()
}

// IdleFor reports how long the session has gone without activity.
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	return now.Sub(s.playback.LastActivity)
}

// IsIdleTimedOut reports whether the session has exceeded the 30-minute
// inactivity timeout.
func (s *Session) IsIdleTimedOut(now time.Time) bool {
	return s.IdleFor(now) >= inactivityTimeout
}

// --- Playback control surface (§6) ---

// GetState returns the control-surface-visible session state.
func (s *Session) GetState() PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	return s.playback
}

// StartPlayback transitions to PLAYING; idempotent if already PLAYING.
func (s *Session) StartPlayback() PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	s.playback.State = Playing
	s.playback.LastActivity = time.Now()
	return s.playback
}

// Pause transitions to PAUSED.
func (s *Session) Pause() PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	s.playback.State = Paused
	s.playback.LastActivity = time.Now()
	return s.playback
}

// Resume transitions back to PLAYING from PAUSED (or STOPPED).
func (s *Session) Resume() PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	s.playback.State = Playing
	s.playback.LastActivity = time.Now()
	return s.playback
}

// StopPlayback transitions to STOPPED.
func (s *Session) StopPlayback() PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	s.playback.State = Stopped
	s.playback.LastActivity = time.Now()
	return s.playback
}

// SetSpeed clamps v to [1, S_max]; non-integer inputs are the caller's
// concern (the control-surface decoder coerces non-integers to 1 per §6).
func (s *Session) SetSpeed(v int) PlaybackState {
	s.playbackMu.Lock()
	defer s.playbackMu.Unlock()
	s.playback.Speed = int(clamp(float64(v), 1, maxSpeed))
	s.playback.LastActivity = time.Now()
	return s.playback
}

// GoBack rewinds cursor_ts by delta seconds and clears the outbound data
// buffer; it requires the playback source to support rewind. The session
// keeps no separate replay buffer, and snapshots already waiting in the
// ingest or outbound queue are not discarded.
func (s *Session) GoBack(deltaSeconds int) (PlaybackState, error) {
	if s.rewind == nil || !s.rewind.SupportsRewind() {
		return PlaybackState{}, ErrRewindUnsupported
	}
	s.playbackMu.Lock()
	s.playback.CursorTS = s.playback.CursorTS.Add(-time.Duration(deltaSeconds) * time.Second)
	s.playback.LastActivity = time.Now()
	state := s.playback
	s.playbackMu.Unlock()

	s.clearDataBuffer()
	return state, nil
}
