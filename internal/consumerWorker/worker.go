package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"ticketflow/internal/model"
)

const retryStepSeconds = 30

type Queue interface {
	Publish(message []byte, delaySeconds int) error
	Consume(ctx context.Context, handler func([]byte) error) error
}

type Sender interface {
	SendConfirmation(c model.Confirmation) error
}

// Reader drains the confirmation queue and sends e-mails. Failed sends are
// republished with a growing delay until maxAttempts is reached.
type Reader struct {
	queue       Queue
	sender      Sender
	maxAttempts int
	done        chan struct{}
	cancel      context.CancelFunc
}

func NewReader(queue Queue, sender Sender, maxAttempts int) *Reader {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Reader{
		queue:       queue,
		sender:      sender,
		maxAttempts: maxAttempts,
		done:        make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("confirmation reader started")

	go func() {
		defer close(r.done)

		if err := r.queue.Consume(cctx, r.Handle); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("confirmation reader stopped")
	}()
}

// Handle processes one queued confirmation. It only returns an error when
// the message should be requeued as-is.
func (r *Reader) Handle(body []byte) error {
	var msg model.Confirmation
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().Err(err).Str("body", string(body)).Msg("dropping malformed confirmation")
		return nil
	}

	err := r.sender.SendConfirmation(msg)
	if err == nil {
		return nil
	}

	msg.Attempt++
	if msg.Attempt >= r.maxAttempts {
		zlog.Logger.Error().
			Err(err).
			Str("reference_id", msg.ReferenceID).
			Int("attempts", msg.Attempt).
			Msg("giving up on confirmation email")
		return nil
	}

	next, mErr := json.Marshal(msg)
	if mErr != nil {
		return mErr
	}
	delay := msg.Attempt * retryStepSeconds
	if pErr := r.queue.Publish(next, delay); pErr != nil {
		return pErr
	}

	zlog.Logger.Warn().
		Err(err).
		Str("reference_id", msg.ReferenceID).
		Int("attempt", msg.Attempt).
		Int("delay_seconds", delay).
		Msg("confirmation email rescheduled")
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
