package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/security"
)

// GenerateOathSecret enrolls a new second factor for the user and returns its
// base32 secret. Any previous secret stops working.
func (s *AuthService) GenerateOathSecret(ctx context.Context, user *domain.User) (_ string, err error) {
	domain.MustBePersisted(user, "generate oath secret")

	ctx, done := s.begin(ctx, OpGenerateOath)
	defer func() { done(err) }()

	secret := security.NewOathSecret()
	now := s.now().UTC()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if _, err := repos.Methods.DeleteByKind(ctx, user.ID, domain.MethodOathKey); err != nil {
			return fmt.Errorf("delete oath methods: %w", err)
		}
		method := newMethod(user.ID, domain.MethodOathKey, domain.StepSecond, now)
		method.Ticket = secret
		if err := repos.Methods.Create(ctx, method); err != nil {
			return fmt.Errorf("create oath method: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("oath secret enrolled", zap.String("user_id", user.ID))
	return secret, nil
}

// OathProvisioningURI renders the otpauth URI an authenticator app enrolls from.
func (s *AuthService) OathProvisioningURI(user *domain.User, secret string) (string, error) {
	domain.MustBePersisted(user, "oath provisioning uri")
	return s.otp.ProvisioningURI(user.Username, secret)
}
