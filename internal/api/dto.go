package api

import "github.com/google/uuid"

// connectorID is the wire shape of a station.ConnectorID: a nested
// object rather than flattened fields, so the pair travels as the
// single structural unit it is everywhere it crosses the wire.
type connectorID struct {
	ChargerID string `json:"chargerId"`
	Idx       uint8  `json:"idx"`
}

// startSessionRequest is the wire body of POST /sessions.
type startSessionRequest struct {
	ConnectorID     connectorID `json:"connectorId"`
	VehicleMaxPower uint32      `json:"vehicleMaxPower"`
}

// powerUpdateRequest is the wire body of POST /sessions/{id}/power-update.
type powerUpdateRequest struct {
	ConsumedPower uint32 `json:"consumedPower"`
}

// sessionResponse mirrors station.Session for the wire, keeping the JSON
// schema stable even if the internal struct grows fields that shouldn't
// be exposed.
type sessionResponse struct {
	SessionID       uuid.UUID   `json:"sessionId"`
	ConnectorID     connectorID `json:"connectorId"`
	AllocatedPower  uint32      `json:"allocatedPower"`
	VehicleMaxPower uint32      `json:"vehicleMaxPower"`
}

// sessionEnvelope wraps a single session response, the shape returned by
// every endpoint that hands back exactly one session rather than the
// whole station.
type sessionEnvelope struct {
	Session sessionResponse `json:"session"`
}

// stationStatusResponse is the wire body of GET /station/status.
type stationStatusResponse struct {
	StationID string                       `json:"stationId"`
	Sessions  map[uuid.UUID]sessionResponse `json:"sessions"`
}

// errorResponse is the wire body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}
