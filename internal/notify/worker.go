package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/harbor/chat-app/internal/metrics"
)

// tokenSource is the registry surface the worker depends on.
type tokenSource interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
	Prune(ctx context.Context, userID, token string) error
}

// Worker consumes push jobs and delivers them through the provider.
// Delivery is best-effort: a transient provider failure is logged and
// dropped, never retried synchronously; a definitive invalid-token failure
// prunes the token.
type Worker struct {
	tokens   tokenSource
	provider Provider
	timeout  time.Duration
}

// NewWorker creates a worker delivering through the given provider.
func NewWorker(tokens tokenSource, provider Provider) *Worker {
	return &Worker{
		tokens:   tokens,
		provider: provider,
		timeout:  15 * time.Second,
	}
}

// HandleRaw decodes a queued job payload and delivers it.
func (w *Worker) HandleRaw(data []byte) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		log.Printf("[notifier] bad job payload: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.Handle(ctx, &job)
}

// Handle delivers one job to every token registered for the recipient.
func (w *Worker) Handle(ctx context.Context, job *Job) {
	tokens, err := w.tokens.Tokens(ctx, job.UserID)
	if err != nil {
		log.Printf("[notifier] token lookup failed user=%s: %v", job.UserID, err)
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		return
	}
	if len(tokens) == 0 {
		return
	}

	for _, token := range tokens {
		err := w.provider.Push(ctx, token, job)
		switch {
		case err == nil:
			metrics.PushDeliveries.WithLabelValues("delivered").Inc()
		case errors.Is(err, ErrInvalidToken):
			metrics.PushDeliveries.WithLabelValues("invalid_token").Inc()
			log.Printf("[notifier] pruning invalid token user=%s", job.UserID)
			if err := w.tokens.Prune(ctx, job.UserID, token); err != nil {
				log.Printf("[notifier] prune failed user=%s: %v", job.UserID, err)
			}
		default:
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
			log.Printf("[notifier] delivery failed user=%s: %v", job.UserID, err)
		}
	}
}
