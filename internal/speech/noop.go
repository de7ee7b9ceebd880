package speech

import (
	"context"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*NoOp)(nil)

// NoOp is a speaker that does nothing. Used when voice output is disabled.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op speaker.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Speak logs the text and returns.
func (n *NoOp) Speak(ctx context.Context, text string) error {
	n.log.Debug("speech no-op: would say %q", text)
	return nil
}

// SetVoice is a no-op.
func (n *NoOp) SetVoice(domain.VoiceSettings) {}
