package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/infra/security"
	"github.com/arklim/account-auth/internal/repository"
)

const systemTicketAttempts = 3

// GenerateSystemTicket stores a new single-use ticket for purpose. A
// non-positive ttl falls back to the configured default; an empty purpose
// means registration admission.
func (s *AuthService) GenerateSystemTicket(ctx context.Context, purpose string, ttl time.Duration) (_ *domain.SystemTicket, err error) {
	ctx, done := s.begin(ctx, OpGenerateTicket)
	defer func() { done(err) }()

	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		purpose = domain.TicketPurposeNewUser
	}
	if ttl <= 0 {
		ttl = s.systemTicketTTL
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	tickets := s.store.Repositories().Tickets

	for attempt := 0; attempt < systemTicketAttempts; attempt++ {
		ticket := domain.SystemTicket{
			ID:         uuid.NewString(),
			Purpose:    purpose,
			Value:      security.NewSystemTicketValue(),
			Expiration: &expiresAt,
			Created:    now,
		}
		err := tickets.Create(ctx, ticket)
		if errors.Is(err, repository.ErrDuplicateTicket) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create system ticket: %w", err)
		}

		s.logger.Info("system ticket generated", zap.String("purpose", purpose), zap.Time("expires_at", expiresAt))
		return &ticket, nil
	}

	return nil, fmt.Errorf("create system ticket: %w", repository.ErrDuplicateTicket)
}
