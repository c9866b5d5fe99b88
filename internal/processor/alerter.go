package processor

import (
	"context"

	"github.com/rs/zerolog"
)

// LogAlerter surfaces operator alerts on the error log stream. Deployments
// with a paging integration can swap in their own Alerter.
type LogAlerter struct {
	logger zerolog.Logger
}

// NewLogAlerter creates a LogAlerter.
func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Alert logs the alert subject and fields at error level.
func (a *LogAlerter) Alert(ctx context.Context, subject string, fields map[string]any) {
	evt := a.logger.Error().Str("alert", subject)
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg("operator alert")
}
