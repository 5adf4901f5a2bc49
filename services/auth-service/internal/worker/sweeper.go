package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredTokenStore removes single-use tokens that can no longer be redeemed.
type ExpiredTokenStore interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// ExpiredVerificationStore clears verification tokens that can no longer be redeemed.
type ExpiredVerificationStore interface {
	ClearExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically purges expired reset and verification tokens. Redemption already
// rejects expired tokens, so sweeping only reclaims storage.
type Sweeper struct {
	resetTokens   ExpiredTokenStore
	verifications ExpiredVerificationStore
	interval      time.Duration
	logger        *zerolog.Logger
	now           func() time.Time
}

func NewSweeper(
	resetTokens ExpiredTokenStore,
	verifications ExpiredVerificationStore,
	interval time.Duration,
	logger *zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		resetTokens:   resetTokens,
		verifications: verifications,
		interval:      interval,
		logger:        logger,
		now:           time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs a single pass. Failures are logged and retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	resets, err := s.resetTokens.DeleteExpiredTokens(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete expired password reset tokens")
	}

	verifications, err := s.verifications.ClearExpiredVerificationTokens(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to clear expired verification tokens")
	}

	if resets > 0 || verifications > 0 {
		s.logger.Info().
			Int64("password_reset_tokens", resets).
			Int64("verification_tokens", verifications).
			Msg("expired tokens swept")
	}
}
