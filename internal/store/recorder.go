package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder queue and retry defaults.
const (
	// DefaultQueueSize bounds the number of exchanges waiting to be
	// persisted. A full queue drops new exchanges rather than blocking the
	// response path.
	DefaultQueueSize = 128

	// defaultRetries is the number of append attempts per exchange.
	defaultRetries = 3

	// defaultBackoff is the pause between append attempts.
	defaultBackoff = 250 * time.Millisecond

	// persistTimeout bounds the total store time spent on one exchange.
	persistTimeout = 10 * time.Second
)

// Exchange is one finished user/assistant turn pair bound for persistence.
// Answer may be partial when the stream was cut short; partial answers are
// recorded like complete ones.
type Exchange struct {
	// SessionID is the chat session the exchange belongs to.
	SessionID string
	// Question is the user's message as received.
	Question string
	// Answer is the assembled assistant reply.
	Answer string
}

// RecorderMetrics holds the Prometheus counters owned by the recorder.
type RecorderMetrics struct {
	// enqueued counts exchanges accepted onto the queue.
	enqueued prometheus.Counter
	// saved counts exchanges fully persisted.
	saved prometheus.Counter
	// failures counts exchanges that could not be persisted after retries.
	failures prometheus.Counter
	// dropped counts exchanges rejected because the queue was full.
	dropped prometheus.Counter
}

// NewRecorderMetrics registers the recorder's counters against reg. Pass a
// fresh prometheus.Registry in tests to keep them hermetic.
func NewRecorderMetrics(reg prometheus.Registerer) *RecorderMetrics {
	factory := promauto.With(reg)

	return &RecorderMetrics{
		enqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "adal",
			Subsystem: "recorder",
			Name:      "enqueued_total",
			Help:      "Total number of exchanges accepted onto the recorder queue.",
		}),
		saved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "adal",
			Subsystem: "recorder",
			Name:      "saved_total",
			Help:      "Total number of exchanges fully persisted.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "adal",
			Subsystem: "recorder",
			Name:      "failures_total",
			Help:      "Total number of exchanges that failed to persist after retries.",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "adal",
			Subsystem: "recorder",
			Name:      "dropped_total",
			Help:      "Total number of exchanges dropped because the queue was full.",
		}),
	}
}

// RecorderConfig tunes the recorder's queue and retry behavior. The zero
// value uses the package defaults.
type RecorderConfig struct {
	// QueueSize is the bounded queue capacity.
	QueueSize int
	// Retries is the number of append attempts per exchange.
	Retries int
	// Backoff is the pause between append attempts.
	Backoff time.Duration
}

func (cfg *RecorderConfig) applyDefaults() {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
}

// Appender is the slice of HistoryStore the recorder needs.
type Appender interface {
	Append(ctx context.Context, sessionID string, role Role, content string) error
}

// Recorder persists finished exchanges off the response path. A single
// worker goroutine drains a bounded queue; Enqueue never blocks the caller.
type Recorder struct {
	// store receives the appends. Usually a BreakerStore so a dead database
	// fails fast instead of serializing retries behind timeouts.
	store Appender
	// log is the structured logger for persistence events.
	log *slog.Logger
	// metrics counts enqueue/save/failure/drop outcomes.
	metrics *RecorderMetrics
	// cfg holds the queue and retry settings after defaulting.
	cfg RecorderConfig

	// queue carries accepted exchanges to the worker.
	queue chan Exchange
	// closing signals the worker to drain and exit.
	closing chan struct{}
	// done is closed when the worker has exited.
	done chan struct{}
	// closeOnce guards the closing channel.
	closeOnce sync.Once
}

// NewRecorder starts the recorder's worker goroutine. Call Close to drain
// the queue and stop it.
func NewRecorder(st Appender, log *slog.Logger, metrics *RecorderMetrics, cfg RecorderConfig) *Recorder {
	cfg.applyDefaults()

	r := &Recorder{
		store:   st,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		queue:   make(chan Exchange, cfg.QueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Enqueue accepts an exchange for background persistence. It never blocks:
// when the queue is full the exchange is dropped, the drop counter is
// incremented, and false is returned.
func (r *Recorder) Enqueue(ex Exchange) bool {
	select {
	case r.queue <- ex:
		r.metrics.enqueued.Inc()
		return true
	default:
		r.metrics.dropped.Inc()
		r.log.Warn("recorder: queue full, dropping exchange",
			slog.String("session_id", ex.SessionID),
		)
		return false
	}
}

// Close drains the queue and stops the worker. Exchanges accepted before
// Close are persisted before it returns; exchanges enqueued after Close may
// be silently discarded.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.closing) })
	<-r.done
}

// run is the worker loop. On shutdown it drains whatever the queue holds,
// then exits.
func (r *Recorder) run() {
	defer close(r.done)

	for {
		select {
		case ex := <-r.queue:
			r.persist(ex)
		case <-r.closing:
			for {
				select {
				case ex := <-r.queue:
					r.persist(ex)
				default:
					return
				}
			}
		}
	}
}

// persist appends the exchange's two turns, retrying with backoff. Turns
// already appended are not re-appended on retry, so a partial failure never
// duplicates the user message.
func (r *Recorder) persist(ex Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	userSaved := false
	for attempt := 0; attempt < r.cfg.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(r.cfg.Backoff)
		}
		if !userSaved {
			if err = r.store.Append(ctx, ex.SessionID, RoleUser, ex.Question); err != nil {
				continue
			}
			userSaved = true
		}
		if err = r.store.Append(ctx, ex.SessionID, RoleAssistant, ex.Answer); err != nil {
			continue
		}
		r.metrics.saved.Inc()
		return
	}

	r.metrics.failures.Inc()
	r.log.Error("recorder: failed to persist exchange",
		slog.String("session_id", ex.SessionID),
		slog.String("error", err.Error()),
	)
}
