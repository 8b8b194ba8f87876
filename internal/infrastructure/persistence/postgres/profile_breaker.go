// Package postgres implements the PostgreSQL persistence layer of the
// PropsHub scoring engine.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/propshub/props-scoring-engine/internal/domain/profile"
	"github.com/propshub/props-scoring-engine/internal/domain/shared"
	"github.com/propshub/props-scoring-engine/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CIRCUIT-PROTECTED PROFILE REPOSITORY
// Profile decoration is optional on the leaderboard read path. When the
// profile store keeps failing, the breaker trips and lookups short-circuit
// to "not found", so leaderboards keep serving undecorated rows instead of
// hammering a sick backend.
// ══════════════════════════════════════════════════════════════════════════════

// BreakerProfileRepository wraps a profile.Repository with a circuit breaker.
type BreakerProfileRepository struct {
	inner   profile.Repository
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBreakerProfileRepository creates a circuit-protected profile repository.
func NewBreakerProfileRepository(inner profile.Repository, logger *slog.Logger) *BreakerProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}

	onStateChange := func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	}

	// Not-found is a normal answer, not a backend failure.
	breaker := circuitbreaker.ProfileStoreBreaker(onStateChange,
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, shared.ErrProfileNotFound)
		}),
	)

	return &BreakerProfileRepository{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

// FindByPhone looks up a profile by phone through the breaker.
func (r *BreakerProfileRepository) FindByPhone(ctx context.Context, phone shared.SubjectKey) (*profile.Profile, error) {
	var found *profile.Profile
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		found, innerErr = r.inner.FindByPhone(ctx, phone)
		return innerErr
	})
	if err != nil {
		return nil, r.degrade(err)
	}
	return found, nil
}

// FindByID looks up a profile by ID through the breaker.
func (r *BreakerProfileRepository) FindByID(ctx context.Context, id shared.ProfileID) (*profile.Profile, error) {
	var found *profile.Profile
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		found, innerErr = r.inner.FindByID(ctx, id)
		return innerErr
	})
	if err != nil {
		return nil, r.degrade(err)
	}
	return found, nil
}

// FindByPhones looks up profiles by phones through the breaker.
// With the circuit open it returns an empty map, which readers treat
// as "no decoration available".
func (r *BreakerProfileRepository) FindByPhones(ctx context.Context, phones []shared.SubjectKey) (map[shared.SubjectKey]*profile.Profile, error) {
	var found map[shared.SubjectKey]*profile.Profile
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		found, innerErr = r.inner.FindByPhones(ctx, phones)
		return innerErr
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return map[shared.SubjectKey]*profile.Profile{}, nil
		}
		return nil, err
	}
	return found, nil
}

// degrade maps an open circuit to the not-found answer single lookups expect.
func (r *BreakerProfileRepository) degrade(err error) error {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.ErrProfileNotFound
	}
	return err
}

// Breaker exposes the underlying breaker for health reporting.
func (r *BreakerProfileRepository) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}
