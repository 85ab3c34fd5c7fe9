// Package queue serializes sends to a rate-limited channel. A single worker
// goroutine takes requests in FIFO order, performs the send, waits the
// configured delay and only then resolves the caller's future.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/common/metrics"
)

// Sender delivers one message to one address.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

type Config struct {
	// Delay is the pause after every send before the next one starts.
	Delay time.Duration
	// Timeout bounds a single send. Zero disables the bound.
	Timeout time.Duration
	Size    int
}

func DefaultConfig() Config {
	return Config{
		Delay:   time.Second,
		Timeout: 10 * time.Second,
		Size:    1024,
	}
}

type request struct {
	ctx     context.Context
	address string
	text    string
	result  chan error
}

// Queue is safe for concurrent use. Concurrent Enqueue calls never produce
// concurrent sends.
type Queue struct {
	sender Sender
	cfg    Config
	logger logger.Logger

	mu       sync.RWMutex
	closed   bool
	requests chan *request
	done     chan struct{}
}

// New starts the worker goroutine. Call Close to stop it.
func New(sender Sender, cfg Config, log logger.Logger) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	q := &Queue{
		sender:   sender,
		cfg:      cfg,
		logger:   log,
		requests: make(chan *request, cfg.Size),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends a send and returns a future resolved with its outcome.
// The channel receives exactly one value.
func (q *Queue) Enqueue(ctx context.Context, address, text string) <-chan error {
	req := &request{
		ctx:     ctx,
		address: address,
		text:    text,
		result:  make(chan error, 1),
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		req.result <- apperrors.NewQueueClosedError()
		return req.result
	}

	select {
	case q.requests <- req:
		metrics.SMSQueueDepth.Inc()
	case <-ctx.Done():
		req.result <- ctx.Err()
	}
	return req.result
}

// Send enqueues and waits for the outcome.
func (q *Queue) Send(ctx context.Context, address, text string) error {
	select {
	case err := <-q.Enqueue(ctx, address, text):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests, lets the worker finish everything already
// queued and waits for it to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.requests)
	}
	q.mu.Unlock()
	<-q.done
}

// Pending reports the number of queued, not yet started requests.
func (q *Queue) Pending() int {
	return len(q.requests)
}

func (q *Queue) run() {
	defer close(q.done)
	for req := range q.requests {
		metrics.SMSQueueDepth.Dec()
		err := q.process(req)
		if q.cfg.Delay > 0 {
			time.Sleep(q.cfg.Delay)
		}
		req.result <- err
	}
}

func (q *Queue) process(req *request) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Channel sender panicked", map[string]interface{}{
				"recipient": logger.MaskPhone(req.address),
				"panic":     fmt.Sprint(r),
			})
			err = apperrors.NewSMSSendFailedError(fmt.Errorf("sender panic: %v", r))
		}
	}()

	ctx := req.ctx
	if q.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.Timeout)
		defer cancel()
	}

	err = q.sender.Send(ctx, req.address, req.text)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && req.ctx.Err() == nil {
		timeoutErr := apperrors.NewSendTimeoutError("sms", q.cfg.Timeout)
		return fmt.Errorf("%w: %w", timeoutErr, err)
	}
	return err
}
