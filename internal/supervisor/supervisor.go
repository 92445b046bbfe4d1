package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Target names the external dependency a connection is being made to.
// It appears verbatim in logs and in ConnectionError messages.
type Target string

const (
	TargetDatabase Target = "database"
	TargetBroker   Target = "message broker"
)

// ErrConnection is matched by every *ConnectionError via errors.Is.
var ErrConnection = errors.New("connection attempts exhausted")

// ConnectionError is returned by Acquire once the retry ceiling is reached,
// or when the caller's context ends while waiting between attempts.
type ConnectionError struct {
	Target   Target
	Attempts int
	Err      error // last dial error or ctx.Err()
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not connect to %s after %d attempts", e.Target, e.Attempts)
	}
	return fmt.Sprintf("could not connect to %s after %d attempts: %v", e.Target, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// Policy is the bounded exponential backoff shared by every connection path.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultPolicy: five attempts, waits of 1s, 2s, 4s, 8s between them.
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, BaseDelay: time.Second}
}

// Delay returns the wait that follows failed attempt i (0-indexed): BaseDelay * 2^i.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Supervisor owns the retry policy and the diagnostic sink for failed attempts.
// It holds no connections itself; every Acquire hands ownership of the
// resulting handle to the caller.
type Supervisor struct {
	policy Policy
	logger *zap.Logger
	sleep  Sleeper

	// OnAttemptFailed is called once per failed dial. Optional.
	OnAttemptFailed func(target Target)
}

// New builds a Supervisor. A nil sleep falls back to SleepContext.
func New(policy Policy, logger *zap.Logger, sleep Sleeper) *Supervisor {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	return &Supervisor{policy: policy, logger: logger, sleep: sleep}
}

func (s *Supervisor) Policy() Policy { return s.policy }

// Acquire calls dial until it succeeds or the policy's attempt ceiling is
// reached. Generic so the same loop serves pgx pools and AMQP sessions.
func Acquire[T any](ctx context.Context, s *Supervisor, target Target, dial func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := range s.policy.Attempts {
		conn, err := dial(ctx)
		if err == nil {
			if i > 0 {
				s.logger.Info("connection established",
					zap.String("target", string(target)),
					zap.Int("attempt", i+1),
				)
			}
			return conn, nil
		}
		lastErr = err

		if s.OnAttemptFailed != nil {
			s.OnAttemptFailed(target)
		}

		last := i == s.policy.Attempts-1
		fields := []zap.Field{
			zap.String("target", string(target)),
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", s.policy.Attempts),
			zap.Error(err),
		}
		if last {
			s.logger.Warn("connection attempt failed", fields...)
			break
		}

		delay := s.policy.Delay(i)
		s.logger.Warn("connection attempt failed, retrying", append(fields, zap.Duration("retry_in", delay))...)

		if err := s.sleep(ctx, delay); err != nil {
			return zero, &ConnectionError{Target: target, Attempts: i + 1, Err: err}
		}
	}

	return zero, &ConnectionError{Target: target, Attempts: s.policy.Attempts, Err: lastErr}
}
