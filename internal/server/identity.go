package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/edgealpha/artifact-agent/internal/config"
)

var (
	errAuthRequired  = errors.New("authentication required")
	errInvalidToken  = errors.New("invalid token")
	errOwnerMismatch = errors.New("ownerId does not match the authenticated user")
)

// resolveOwner establishes the caller identity under the access policy.
// claimed is the owner id the request carries; an empty result with a nil
// error means an anonymous caller.
func (s *Server) resolveOwner(r *http.Request, claimed string, allowAnonymous bool) (string, int, error) {
	claimed = strings.TrimSpace(claimed)

	switch s.access.Mode {
	case config.AccessTrusted:
		if claimed == "" && !allowAnonymous {
			return "", http.StatusUnauthorized, errAuthRequired
		}
		return claimed, http.StatusOK, nil

	default:
		token := config.NormalizeBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if claimed == "" && allowAnonymous {
				return "", http.StatusOK, nil
			}
			return "", http.StatusUnauthorized, errAuthRequired
		}
		owner, ok, err := s.tokens.ResolveAuthToken(token)
		if err != nil {
			s.log.Error("resolve auth token failed", "error", err)
			return "", http.StatusInternalServerError, errors.New("failed to verify identity")
		}
		if !ok {
			return "", http.StatusUnauthorized, errInvalidToken
		}
		if claimed != "" && claimed != owner {
			return "", http.StatusForbidden, errOwnerMismatch
		}
		return owner, http.StatusOK, nil
	}
}
