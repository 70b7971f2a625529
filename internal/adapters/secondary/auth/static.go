package auth

import (
	"context"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/cockroachdb/errors"
)

// StaticAuthenticator resolves bearer tokens against a fixed token to user
// table. With an empty table every non-empty token is accepted as its own
// user id, which is only meant for local development.
type StaticAuthenticator struct {
	tokens map[string]string
}

func NewStaticAuthenticator(tokens map[string]string) *StaticAuthenticator {
	return &StaticAuthenticator{tokens: tokens}
}

var _ domain.Authenticator = (*StaticAuthenticator)(nil)

func (a *StaticAuthenticator) Authenticate(_ context.Context, credentials domain.Credentials) (string, error) {
	if credentials.Token == "" {
		return "", errors.Wrap(domain.ErrAuthFailed, "missing token")
	}

	if len(a.tokens) == 0 {
		return credentials.Token, nil
	}

	userID, ok := a.tokens[credentials.Token]
	if !ok {
		return "", errors.Wrap(domain.ErrAuthFailed, "unknown token")
	}

	return userID, nil
}
