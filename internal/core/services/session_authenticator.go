package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// SessionAuthenticator turns the credential presented at handshake into an Identity.
type SessionAuthenticator struct {
	verifier ports.TokenVerifier
}

// NewSessionAuthenticator creates an authenticator backed by the given verifier.
func NewSessionAuthenticator(verifier ports.TokenVerifier) *SessionAuthenticator {
	return &SessionAuthenticator{verifier: verifier}
}

// Authenticate validates the credential. Every failure wraps
// apperrors.ErrAuthentication.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrAuthentication, err)
	}

	token := strings.TrimSpace(credential)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return domain.Identity{}, apperrors.ErrMissingCredential
	}

	identity, err := a.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthentication) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}

	if err := identity.Validate(); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredential, err)
	}
	return identity, nil
}
