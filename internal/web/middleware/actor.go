package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// Headers identifying the acting user.
const (
	HeaderUserID       = "X-User-ID"
	HeaderWorkspace    = "X-Workspace"
	HeaderOrganization = "X-Organization"
)

// Actor copies the identity headers into the request context for the
// activity log. Missing headers leave the defaults core applies.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := core.Actor{
			UserID:       strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Workspace:    strings.TrimSpace(r.Header.Get(HeaderWorkspace)),
			Organization: strings.TrimSpace(r.Header.Get(HeaderOrganization)),
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithActor(r.Context(), a)))
	})
}
