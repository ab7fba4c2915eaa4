package rest

import (
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/duet.space/internal/platform/errors"
	"github.com/louisbranch/duet.space/internal/platform/httpx"
	"github.com/louisbranch/duet.space/internal/platform/requestctx"
)

const bearerPrefix = "Bearer "

// GrantVerifier turns a raw bearer grant into verified pair claims.
// PairGrantConfig is the default implementation; sibling services can
// substitute their own resolver.
type GrantVerifier interface {
	VerifyGrant(grant string) (PairGrantClaims, error)
}

// Authenticate verifies the pair grant Bearer token and binds the resulting
// principal to the request context. Requests without a valid grant never
// reach the handlers.
func Authenticate(grants GrantVerifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			grant, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(w, r, apperrors.New(apperrors.CodeUnauthorized, "bearer token is required"))
				return
			}
			claims, err := grants.VerifyGrant(grant)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			ctx := requestctx.WithPrincipal(r.Context(), requestctx.Principal{
				UserID: claims.UserID,
				PairID: claims.PairID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", false
	}
	return token, true
}
