// Package admission bounds how many refinement sessions run at once and
// enforces the per-request deadline.
package admission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/observability"
)

// Defaults used when Options fields are zero.
const (
	DefaultMaxConcurrent = 10
	DefaultTimeout       = 600 * time.Second
	DefaultTurnEstimate  = 15 * time.Second
)

const queuedMessageFmt = "All %d generation slots are busy. Retry in about %d seconds."

// Runner executes one refinement session. *refine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, input, model string, maxTurns int) (*domain.Session, error)
}

// Logger is the logging surface the controller needs.
type Logger interface {
	Warnj(j log.JSON)
	Errorj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Warnj(log.JSON)  {}
func (nopLogger) Errorj(log.JSON) {}

// Options configures a Controller.
type Options struct {
	MaxConcurrent       int
	Timeout             time.Duration
	DefaultTurnEstimate time.Duration
	Logger              Logger
}

// Outcome is the result of Submit: exactly one of Session or Queued is set.
type Outcome struct {
	RequestID string
	Session   *domain.Session
	Queued    *domain.QueuedAcknowledgment
	Message   string
}

// Controller owns a fixed pool of execution slots.
type Controller struct {
	runner Runner
	opts   Options
	slots  chan struct{}

	mu        sync.Mutex
	turnTotal time.Duration
	turnCount int
}

// NewController creates a controller around runner.
func NewController(runner Runner, opts Options) *Controller {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DefaultTurnEstimate <= 0 {
		opts.DefaultTurnEstimate = DefaultTurnEstimate
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Controller{
		runner: runner,
		opts:   opts,
		slots:  make(chan struct{}, opts.MaxConcurrent),
	}
}

// Capacity returns the configured slot count.
func (c *Controller) Capacity() int {
	return cap(c.slots)
}

// InFlight returns the number of occupied slots.
func (c *Controller) InFlight() int {
	return len(c.slots)
}

// Available returns the number of free slots.
func (c *Controller) Available() int {
	return c.Capacity() - c.InFlight()
}

// Timeout returns the per-request deadline.
func (c *Controller) Timeout() time.Duration {
	return c.opts.Timeout
}

type runResult struct {
	session *domain.Session
	err     error
}

// Submit runs one session if a slot is free. When every slot is busy it
// returns a queued acknowledgment instead; nothing is scheduled for later.
//
// An admitted run that fails returns the finalized session together with the
// error. A run that outlives the deadline returns ErrGenerationTimeout and no
// session.
func (c *Controller) Submit(ctx context.Context, requestID, input, model string, maxTurns int) (*Outcome, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if !c.tryAcquire() {
		return c.overflow(requestID), nil
	}
	defer c.release()
	observability.RecordAdmissionOutcome(string(domain.AdmissionAdmitted))

	runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	results := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.opts.Logger.Errorj(log.JSON{
					"event":      "admission_runner_panic",
					"request_id": requestID,
					"panic":      fmt.Sprint(r),
				})
				results <- runResult{err: fmt.Errorf("refinement panicked: %v", r)}
			}
		}()
		observability.RecordAdmissionOutcome(string(domain.AdmissionRunning))
		session, err := c.runner.Run(runCtx, input, model, maxTurns)
		results <- runResult{session: session, err: err}
	}()

	select {
	case res := <-results:
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, c.timedOut(requestID)
		}
		if res.err != nil {
			observability.RecordAdmissionOutcome(string(domain.AdmissionError))
			return &Outcome{RequestID: requestID, Session: res.session}, res.err
		}
		c.observe(res.session)
		observability.RecordAdmissionOutcome(string(domain.AdmissionDone))
		return &Outcome{RequestID: requestID, Session: res.session}, nil

	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, c.timedOut(requestID)
		}
		observability.RecordAdmissionOutcome(string(domain.AdmissionError))
		return nil, fmt.Errorf("request %s cancelled: %w", requestID, ctx.Err())
	}
}

// EstimatedWait is ceil(in-flight × average turn duration) in seconds.
func (c *Controller) EstimatedWait() int {
	avg := c.averageTurn()
	wait := math.Ceil(float64(c.InFlight()) * avg.Seconds())
	if wait < 0 {
		return 0
	}
	return int(wait)
}

func (c *Controller) tryAcquire() bool {
	select {
	case c.slots <- struct{}{}:
		observability.SetInFlight(len(c.slots))
		return true
	default:
		return false
	}
}

func (c *Controller) release() {
	<-c.slots
	observability.SetInFlight(len(c.slots))
}

func (c *Controller) overflow(requestID string) *Outcome {
	wait := c.EstimatedWait()
	inFlight := c.InFlight()
	c.opts.Logger.Warnj(log.JSON{
		"event":                  "admission_overflow",
		"request_id":             requestID,
		"in_flight":              inFlight,
		"capacity":               c.Capacity(),
		"estimated_wait_seconds": wait,
	})
	observability.RecordAdmissionOutcome(string(domain.AdmissionOverflow))

	return &Outcome{
		RequestID: requestID,
		Queued: &domain.QueuedAcknowledgment{
			RequestID:            requestID,
			EstimatedWaitSeconds: wait,
			Status:               domain.QueuedStatus,
		},
		Message: fmt.Sprintf(queuedMessageFmt, c.Capacity(), wait),
	}
}

func (c *Controller) timedOut(requestID string) error {
	c.opts.Logger.Warnj(log.JSON{
		"event":           "admission_timeout",
		"request_id":      requestID,
		"timeout_seconds": int(c.opts.Timeout.Seconds()),
	})
	observability.RecordAdmissionOutcome(string(domain.AdmissionTimedOut))
	return fmt.Errorf("request %s exceeded %s: %w", requestID, c.opts.Timeout, domain.ErrGenerationTimeout)
}

// observe folds a finished session's turns into the running average.
func (c *Controller) observe(session *domain.Session) {
	if session == nil || len(session.Turns) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turnTotal += session.Duration()
	c.turnCount += len(session.Turns)
}

func (c *Controller) averageTurn() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnCount == 0 {
		return c.opts.DefaultTurnEstimate
	}
	return c.turnTotal / time.Duration(c.turnCount)
}
