package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/speech"
)

// DefaultIdleTimeout is how long Julian keeps listening without input.
const DefaultIdleTimeout = 2 * time.Minute

// Sleeper is what the idle supervisor watches. *Assistant implements it.
type Sleeper interface {
	State() domain.State
	LastActivity() time.Time
	Sleep(ctx context.Context, line string)
}

var _ Sleeper = (*Assistant)(nil)

// IdleOption configures the idle supervisor.
type IdleOption func(*IdleSupervisor)

// WithTickInterval sets how often the supervisor checks for inactivity.
func WithTickInterval(d time.Duration) IdleOption {
	return func(s *IdleSupervisor) {
		s.tickInterval = d
	}
}

// WithIdleLine sets what is said when Julian dozes off. Empty is silent.
func WithIdleLine(line string) IdleOption {
	return func(s *IdleSupervisor) {
		s.line = line
	}
}

// WithIdleClock overrides time.Now.
func WithIdleClock(now func() time.Time) IdleOption {
	return func(s *IdleSupervisor) {
		s.now = now
	}
}

// IdleSupervisor runs in the background and sends the assistant back to
// sleep after timeout without an utterance.
type IdleSupervisor struct {
	target       Sleeper
	log          *logger.Logger
	timeout      time.Duration
	tickInterval time.Duration
	line         string
	now          func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewIdleSupervisor creates a supervisor. A timeout of zero or less uses
// DefaultIdleTimeout.
func NewIdleSupervisor(target Sleeper, timeout time.Duration, log *logger.Logger, opts ...IdleOption) *IdleSupervisor {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	s := &IdleSupervisor{
		target:       target,
		log:          log,
		timeout:      timeout,
		tickInterval: time.Second,
		line:         speech.LineIdleSleep(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background loop. Non-blocking.
func (s *IdleSupervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("idle supervisor already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	go s.loop(childCtx)

	s.log.Info("idle supervisor started (timeout=%s, tick=%s)", s.timeout, s.tickInterval)
}

// Stop shuts down the supervisor.
func (s *IdleSupervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.running = false
	s.log.Info("idle supervisor stopped")
}

func (s *IdleSupervisor) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick puts the target to sleep if it has been listening too long
// without input. It reports whether it did.
func (s *IdleSupervisor) tick(ctx context.Context) bool {
	if s.target.State() != domain.StateListening {
		return false
	}
	idle := s.now().Sub(s.target.LastActivity())
	if idle < s.timeout {
		return false
	}
	s.log.Info("idle supervisor: no input for %s, sleeping", idle.Round(time.Second))
	s.target.Sleep(ctx, s.line)
	return true
}
