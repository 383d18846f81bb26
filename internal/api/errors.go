package api

import (
	"net/http"

	"stationsems/internal/station"
)

// statusFor maps a station.SessionError to an HTTP status.
// ConnectorNotFound and SessionNotFound are both 404 (the referenced
// resource doesn't exist); ConnectorAlreadyInUse is 409 (the resource
// exists but is in a conflicting state).
func statusFor(err error) int {
	sessErr, ok := err.(*station.SessionError)
	if !ok {
		return http.StatusInternalServerError
	}
	switch sessErr.Kind {
	case station.ConnectorNotFound, station.SessionNotFound:
		return http.StatusNotFound
	case station.ConnectorAlreadyInUse:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
