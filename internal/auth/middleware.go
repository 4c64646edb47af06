package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/procurehub/procurehub/internal/platform/httpx"
	"github.com/procurehub/procurehub/internal/shared"
)

// TokenVerifier is satisfied by *Service.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*Claims, error)
}

// Authenticator turns a bearer token into a shared.Principal on the request
// context. Requests without a valid token receive 401.
type Authenticator struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthenticator constructs the middleware.
func NewAuthenticator(verifier TokenVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

// Middleware enforces bearer authentication.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, a.logger, shared.ErrUnauthorized)
			return
		}
		claims, err := a.verifier.VerifyToken(r.Context(), raw)
		if err != nil {
			httpx.RespondError(w, a.logger, err)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), shared.Principal{
			UserID:    claims.UserID,
			Email:     claims.Email,
			Role:      claims.Role,
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
