// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/gourd/core/logger"
)

// Verifier verifies a bearer token and returns the identity it carries
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// NewBearerMiddleware returns a middleware handler to validate bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header. Requests without the
// header pass through anonymously; the handlers decide whether an anonymous
// caller may proceed.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is present but malformed, expired or
// signed with a different secret.
func NewBearerMiddleware(verifier Verifier) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IdentityFromContext(r.Context()) != nil { // already authenticated?
				h.ServeHTTP(w, r)
				return
			}

			bearer := r.Header.Get("Authorization")
			if len(bearer) == 0 {
				h.ServeHTTP(w, r) // no token no identity, moving on
				return
			}
			if len(bearer) < 8 || strings.ToLower(bearer[:7]) != "bearer " {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(bearer[7:])
			if err != nil {
				logger.FromContext(r.Context()).WithError(err).Infoln("rejected bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := ContextWithIdentity(r.Context(), identity)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, identity.Subject)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
