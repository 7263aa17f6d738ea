package aggregate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// RetryPolicy controls how transient API failures are retried.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	// Backoff is "exponential", "linear" or "constant".
	Backoff string
}

// DefaultRetryPolicy returns three attempts with exponential backoff from 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 200 * time.Millisecond, MaxDelay: 2 * time.Second, Backoff: "exponential"}
}

// backoff returns the delay before retry number attempt (0-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	var d time.Duration
	switch p.Backoff {
	case "exponential":
		d = p.Delay << attempt
	case "linear":
		d = p.Delay * time.Duration(attempt+1)
	default:
		d = p.Delay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTransient reports whether a provider failure may succeed when retried:
// network errors, timeouts, 429 and 5xx responses. Not-found, decode and
// other client errors are final.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ce *schema.CanvasError
	if errors.As(err, &ce) {
		if ce.Code != schema.ErrCodeProvider {
			return false
		}
		if status, ok := ce.Details["status"].(int); ok {
			return status == http.StatusTooManyRequests || status >= 500
		}
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, rejecting calls
	CircuitHalfOpen                     // Testing recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures
	// that opens the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before letting a probe through.
	Cooldown time.Duration
	// HalfOpenMax is the number of probes allowed while half-open.
	HalfOpenMax int
}

// DefaultBreakerConfig opens after 5 failures for 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second, HalfOpenMax: 1}
}

type circuit struct {
	state            CircuitState
	failures         int
	lastFailure      time.Time
	halfOpenAttempts int
}

// Breaker keeps one circuit per API operation so that a failing event search
// endpoint does not block workflow loads.
type Breaker struct {
	mu       sync.Mutex
	circuits map[string]*circuit
	config   BreakerConfig
	now      func() time.Time
}

// NewBreaker creates a breaker with all circuits closed.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{circuits: make(map[string]*circuit), config: config, now: time.Now}
}

// Allow returns nil when a call to op may proceed, or a PROVIDER error while
// the circuit is open.
func (b *Breaker) Allow(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.get(op)

	switch c.state {
	case CircuitOpen:
		remaining := b.config.Cooldown - b.now().Sub(c.lastFailure)
		if remaining <= 0 {
			c.state = CircuitHalfOpen
			c.halfOpenAttempts = 1
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeProvider, "circuit open for %s after %d consecutive failures", op, c.failures).
			WithDetails(map[string]any{
				"operation":          op,
				"state":              c.state.String(),
				"cooldown_remaining": remaining.String(),
			})
	case CircuitHalfOpen:
		if c.halfOpenAttempts >= b.config.HalfOpenMax {
			return schema.NewErrorf(schema.ErrCodeProvider, "circuit half-open for %s: probe in flight", op).
				WithDetails(map[string]any{"operation": op, "state": c.state.String()})
		}
		c.halfOpenAttempts++
	}
	return nil
}

// RecordSuccess closes the circuit of op.
func (b *Breaker) RecordSuccess(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.get(op)
	c.state = CircuitClosed
	c.failures = 0
	c.halfOpenAttempts = 0
}

// RecordFailure counts a transient failure of op and returns the new state.
func (b *Breaker) RecordFailure(op string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.get(op)
	c.failures++
	c.lastFailure = b.now()
	if c.state == CircuitHalfOpen || c.failures >= b.config.FailureThreshold {
		c.state = CircuitOpen
	}
	return c.state
}

// State returns the state of op's circuit.
func (b *Breaker) State(op string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.get(op)
	if c.state == CircuitOpen && b.now().Sub(c.lastFailure) >= b.config.Cooldown {
		c.state = CircuitHalfOpen
		c.halfOpenAttempts = 0
	}
	return c.state
}

func (b *Breaker) get(op string) *circuit {
	c, ok := b.circuits[op]
	if !ok {
		c = &circuit{}
		b.circuits[op] = c
	}
	return c
}

// call runs fn under the breaker and retry policy. Only transient failures
// are retried and counted against the circuit.
func (p *APIProvider) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := p.breaker.Allow(op); err != nil {
		return err
	}
	attempts := max(p.retry.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			p.breaker.RecordSuccess(op)
			return nil
		}
		if !isTransient(err) {
			p.breaker.RecordSuccess(op)
			return err
		}
		if attempt+1 < attempts {
			if werr := waitForBackoff(ctx, p.retry.backoff(attempt)); werr != nil {
				break
			}
		}
	}
	p.breaker.RecordFailure(op)
	return err
}
