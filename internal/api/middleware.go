package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "reservations-api/internal/common/errors"
)

// requireAdminToken guards the internal API with a bearer token. An empty
// configured token locks the internal API entirely.
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.Admin.Token
		if token == "" {
			s.responder.WriteError(w, r, apperrors.NewUnauthorizedError())
			return
		}

		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			s.responder.WriteError(w, r, apperrors.NewUnauthorizedError())
			return
		}

		next.ServeHTTP(w, r)
	})
}
