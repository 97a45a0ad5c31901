package chain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// recordInvocationGas is the fixed low gas allowance for record_invocation.
	recordInvocationGas uint64 = 30_000_000_000_000

	// DefaultRecordQueueSize bounds the in-process recording queue.
	DefaultRecordQueueSize = 256

	recordAttempts   = 3
	recordRetryDelay = 500 * time.Millisecond
)

var (
	recordsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invocation_records_enqueued_total",
		Help: "Number of invocation records accepted onto the recording queue.",
	})
	recordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invocation_records_dropped_total",
		Help: "Number of invocation records dropped because the queue was full.",
	})
	recordsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invocation_records_failed_total",
		Help: "Number of invocation records that failed on chain after retries.",
	})
)

// Invocation is one record_invocation call to the registry contract.
type Invocation struct {
	AgentAccountID string `json:"agent_account_id"`
	InvocationType string `json:"invocation_type"`
}

// Recorder writes invocation records to the registry contract from a bounded
// background queue. Recording is fire and forget: a full queue drops the
// record and a failed call is retried a fixed number of times, counted, and
// logged, but never surfaced to the request that produced it.
type Recorder struct {
	signer     Signer
	contractID string
	queue      chan Invocation
	logger     zerolog.Logger
}

// NewRecorder creates a recorder writing to contractID. A queueSize of zero
// uses DefaultRecordQueueSize.
func NewRecorder(signer Signer, contractID string, queueSize int, logger *zerolog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultRecordQueueSize
	}
	return &Recorder{
		signer:     signer,
		contractID: contractID,
		queue:      make(chan Invocation, queueSize),
		logger:     logger.With().Str("component", "recorder").Logger(),
	}
}

// Enqueue queues an invocation record without blocking. When the queue is
// full the record is dropped and counted.
func (r *Recorder) Enqueue(inv Invocation) {
	select {
	case r.queue <- inv:
		recordsEnqueued.Inc()
	default:
		recordsDropped.Inc()
		r.logger.Warn().
			Str("agentAccountId", inv.AgentAccountID).
			Str("invocationType", inv.InvocationType).
			Msg("Recording queue full, dropping invocation record")
	}
}

// Run drains the queue until the context is cancelled. It always returns nil
// so a shared errgroup shutdown is not treated as a failure.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case inv := <-r.queue:
			r.record(ctx, inv)
		}
	}
}

func (r *Recorder) record(ctx context.Context, inv Invocation) {
	args, err := json.Marshal(inv)
	if err != nil {
		recordsFailed.Inc()
		r.logger.Error().Err(err).Msg("Failed to encode invocation record")
		return
	}
	err = retry.Do(
		func() error {
			_, sendErr := r.signer.SignAndSend(ctx, Action{
				ContractID: r.contractID,
				Method:     "record_invocation",
				Args:       args,
				Gas:        recordInvocationGas,
				Deposit:    0,
			})
			return sendErr
		},
		retry.Context(ctx),
		retry.Attempts(recordAttempts),
		retry.Delay(recordRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		recordsFailed.Inc()
		r.logger.Warn().Err(err).
			Str("agentAccountId", inv.AgentAccountID).
			Str("invocationType", inv.InvocationType).
			Msg("Failed to record invocation on chain")
	}
}
