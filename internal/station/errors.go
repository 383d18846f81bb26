package station

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind distinguishes the three user-visible error conditions the
// core can report. Stop never fails and has no associated kind.
type ErrorKind int

const (
	// ConnectorNotFound means the referenced charger does not exist, or
	// the connector index falls outside the charger's valid range.
	ConnectorNotFound ErrorKind = iota
	// ConnectorAlreadyInUse means another active session already holds
	// the referenced connector.
	ConnectorAlreadyInUse
	// SessionNotFound means the referenced session id is unknown.
	SessionNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectorNotFound:
		return "ConnectorNotFound"
	case ConnectorAlreadyInUse:
		return "ConnectorAlreadyInUse"
	case SessionNotFound:
		return "SessionNotFound"
	default:
		return "Unknown"
	}
}

// SessionError is the tagged-variant error the core returns from its
// mutating operations. The offending identifier is carried alongside the
// kind so callers (and the HTTP layer) can report it without re-parsing
// an error string.
type SessionError struct {
	Kind        ErrorKind
	ConnectorID *ConnectorID
	SessionID   *uuid.UUID
}

func (e *SessionError) Error() string {
	switch e.Kind {
	case ConnectorNotFound:
		return fmt.Sprintf("connector %s:%d not found", e.ConnectorID.ChargerID, e.ConnectorID.Idx)
	case ConnectorAlreadyInUse:
		return fmt.Sprintf("connector %s:%d is already in use", e.ConnectorID.ChargerID, e.ConnectorID.Idx)
	case SessionNotFound:
		return fmt.Sprintf("session %s not found", e.SessionID)
	default:
		return "unknown session error"
	}
}

func errConnectorNotFound(id ConnectorID) error {
	return &SessionError{Kind: ConnectorNotFound, ConnectorID: &id}
}

func errConnectorAlreadyInUse(id ConnectorID) error {
	return &SessionError{Kind: ConnectorAlreadyInUse, ConnectorID: &id}
}

func errSessionNotFound(id uuid.UUID) error {
	return &SessionError{Kind: SessionNotFound, SessionID: &id}
}
