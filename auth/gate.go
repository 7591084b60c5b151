package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"meowchat/domain"
	apperr "meowchat/errors"
)

const bearerScheme = "Bearer "

// Gate validates the bearer credential presented once, at connection
// time. It is a pure check: admission never touches the registry, and a
// connection that fails here must never reach it.
type Gate struct {
	log    *slog.Logger
	secret []byte
}

func NewGate(log *slog.Logger, secret []byte) *Gate {
	return &Gate{log: log, secret: secret}
}

// Admit decodes a raw "Bearer <token>" credential into an Identity.
//
// The expiry comparison at the end is redundant with the verifier's own
// claims validation; both checks are kept so that signature failure and
// expiry stay distinguishable to the caller.
func (g *Gate) Admit(rawCredential string) (domain.Identity, error) {
	if rawCredential == "" || !strings.HasPrefix(rawCredential, bearerScheme) {
		return domain.Identity{}, apperr.ErrMissingCredential
	}

	claims, err := ValidateToken(strings.TrimPrefix(rawCredential, bearerScheme), g.secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			g.log.Warn("Expired token presented", "error", err)
			return domain.Identity{}, apperr.ErrCredentialExpired
		}
		return domain.Identity{}, apperr.ErrInvalidCredential
	}

	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		g.log.Warn("Token expired", "username", claims.Username)
		return domain.Identity{}, apperr.ErrCredentialExpired
	}

	return domain.Identity{ID: claims.UserID, Username: claims.Username}, nil
}
