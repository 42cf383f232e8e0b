// Package handlers adapts HTTP requests to the platform services.
package handlers

import (
	"net/http"
	"strconv"

	"triaright-platform/errors"
	"triaright-platform/services/auth"
)

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, errors.E(errors.Invalid, "invalid "+name)
	}
	return id, nil
}

// caller returns the authenticated identity placed by the auth middleware.
func caller(r *http.Request) (auth.Identity, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Identity{}, errors.E(errors.Unauthorized, "authentication required")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
