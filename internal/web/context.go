package web

import (
	"net/http"

	"github.com/JonMunkholm/catalog/internal/web/middleware"
)

// callerID returns the identity the CallerID middleware stored for r.
func callerID(r *http.Request) string {
	return middleware.CallerFromContext(r.Context())
}
