package decode

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/ved/internal/errs"
	"github.com/kikiluvv/ved/internal/frame"
)

// Retrying retries a decode once when the first failure is transient.
type Retrying struct {
	next   Decoder
	logger zerolog.Logger
}

// WithRetry wraps next.
func WithRetry(logger zerolog.Logger, next Decoder) *Retrying {
	return &Retrying{next: next, logger: logger.With().Str("component", "decoder").Logger()}
}

func (r *Retrying) DecodeFrame(ctx context.Context, locator string, index int64) (*frame.Buffer, error) {
	buf, err := r.next.DecodeFrame(ctx, locator, index)
	if err == nil || !errs.IsTransient(err) || ctx.Err() != nil {
		return buf, err
	}

	r.logger.Warn().
		Err(err).
		Str("locator", locator).
		Int64("index", index).
		Msg("transient decode failure, retrying once")

	return r.next.DecodeFrame(ctx, locator, index)
}
