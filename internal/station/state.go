package station

import (
	"sync"

	"github.com/google/uuid"
)

// SessionEvent names the lifecycle transition a StationState hook is
// notified about.
type SessionEvent string

const (
	EventSessionStarted SessionEvent = "started"
	EventSessionStopped SessionEvent = "stopped"
	EventSessionUpdated SessionEvent = "updated"
)

// State is the session registry that invokes the allocator on every
// admission and telemetry event. It owns the charger table derived from
// the configuration and enforces a hardcap on every admission or update
// so that a newly admitted or updated session never claims headroom that
// its not-yet-notified peers have not released.
//
// All mutating and reading operations serialize on a single mutex: the
// workload is low-rate and short-critical-section, so splitting locks
// per charger would only complicate cross-charger rebalancing for no
// measured benefit.
type State struct {
	mu       sync.Mutex
	config   StationConfig
	chargers map[string]ChargerConfig
	sessions map[uuid.UUID]Session

	// OnSessionEvent, if set, is invoked after a mutation successfully
	// commits, with the mutex released. It is the hook internal/events
	// and internal/live attach to; it never influences the outcome of a
	// request and a panicking hook is the caller's problem, not this
	// package's.
	OnSessionEvent func(event SessionEvent, session Session)
}

// New builds a State from a StationConfig with an empty session registry.
func New(config StationConfig) *State {
	chargers := make(map[string]ChargerConfig, len(config.Chargers))
	for _, c := range config.Chargers {
		chargers[c.ID] = c
	}
	return &State{
		config:   config,
		chargers: chargers,
		sessions: make(map[uuid.UUID]Session),
	}
}

// Config returns a copy of the station's configuration.
func (st *State) Config() StationConfig {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.config
}

// ReplaceConfig installs a new configuration, discarding every existing
// session. It is the only way to change the grid capacity or charger
// table.
func (st *State) ReplaceConfig(config StationConfig) {
	st.mu.Lock()
	defer st.mu.Unlock()
	chargers := make(map[string]ChargerConfig, len(config.Chargers))
	for _, c := range config.Chargers {
		chargers[c.ID] = c
	}
	st.config = config
	st.chargers = chargers
	st.sessions = make(map[uuid.UUID]Session)
}

// Sessions returns a snapshot copy of the current session registry, safe
// to serialize or inspect after the lock is released.
func (st *State) Sessions() map[uuid.UUID]Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[uuid.UUID]Session, len(st.sessions))
	for id, s := range st.sessions {
		out[id] = s
	}
	return out
}

// allocatedPowerLocked sums the allocation of every session, optionally
// restricted to one charger. Callers must hold st.mu.
func (st *State) allocatedPowerLocked(chargerID string) uint32 {
	total := uint32(0)
	for _, s := range st.sessions {
		if chargerID != "" && s.ConnectorID.ChargerID != chargerID {
			continue
		}
		total += s.AllocatedPower
	}
	return total
}

// stationRemainingCapacityLocked returns gridCapacity - total allocation,
// saturating at 0. Callers must hold st.mu.
func (st *State) stationRemainingCapacityLocked() uint32 {
	return saturatingSub(st.config.GridCapacity, st.allocatedPowerLocked(""))
}

// chargerRemainingCapacityLocked returns the headroom left on a charger,
// capped by the station's own remaining headroom. Callers must hold
// st.mu.
func (st *State) chargerRemainingCapacityLocked(chargerID string) uint32 {
	stationRemaining := st.stationRemainingCapacityLocked()
	charger, ok := st.chargers[chargerID]
	if !ok {
		return 0
	}
	chargerRemaining := saturatingSub(charger.MaxPower, st.allocatedPowerLocked(chargerID))
	if chargerRemaining > stationRemaining {
		return stationRemaining
	}
	return chargerRemaining
}

func (st *State) sessionsSliceLocked() []Session {
	out := make([]Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Start admits a new session on connectorID with the given
// vehicle-declared power ceiling. It validates the connector, computes
// the hardcap from the current (pre-admission) state, runs the allocator,
// and inserts the clamped result. Other sessions' allocations are left
// untouched until their own next telemetry event.
func (st *State) Start(connectorID ConnectorID, vehicleMaxPower uint32) (Session, error) {
	st.mu.Lock()

	charger, ok := st.chargers[connectorID.ChargerID]
	if !ok || connectorID.Idx < 1 || connectorID.Idx > charger.Connectors {
		st.mu.Unlock()
		return Session{}, errConnectorNotFound(connectorID)
	}
	for _, s := range st.sessions {
		if s.ConnectorID == connectorID {
			st.mu.Unlock()
			return Session{}, errConnectorAlreadyInUse(connectorID)
		}
	}

	hardcap := st.stationRemainingCapacityLocked()
	if chargerRemaining := st.chargerRemainingCapacityLocked(connectorID.ChargerID); chargerRemaining < hardcap {
		hardcap = chargerRemaining
	}

	newSession := Session{
		ID:              uuid.New(),
		ConnectorID:     connectorID,
		AllocatedPower:  0,
		VehicleMaxPower: vehicleMaxPower,
	}

	allocated := AllocateForNewSession(st.sessionsSliceLocked(), st.config.Chargers, st.config.GridCapacity, hardcap, newSession)
	st.sessions[allocated.ID] = allocated
	st.mu.Unlock()

	st.notify(EventSessionStarted, allocated)
	return allocated, nil
}

// Stop removes a session if present. It is idempotent and never fails;
// it does not re-run the allocator, so the remaining sessions keep their
// prior allocations until their own next telemetry event.
func (st *State) Stop(sessionID uuid.UUID) {
	st.mu.Lock()
	session, ok := st.sessions[sessionID]
	if ok {
		delete(st.sessions, sessionID)
	}
	st.mu.Unlock()

	if ok {
		st.notify(EventSessionStopped, session)
	}
}

// PowerUpdate reports a session's current consumption. If the vehicle is
// consuming less than it was allocated, its vehicleMaxPower is lowered to
// that value (it is declaring it will not use more, freeing headroom for
// others). The session may then grow back up to the charger's remaining
// capacity plus what it already holds (its own kW are not double-counted
// against itself), clamped to the recomputed allocator result.
func (st *State) PowerUpdate(sessionID uuid.UUID, consumedPower uint32) (Session, error) {
	st.mu.Lock()

	session, ok := st.sessions[sessionID]
	if !ok {
		st.mu.Unlock()
		return Session{}, errSessionNotFound(sessionID)
	}

	updated := session
	if consumedPower < session.AllocatedPower {
		updated.VehicleMaxPower = consumedPower
	}

	hardcap := st.chargerRemainingCapacityLocked(session.ConnectorID.ChargerID) + session.AllocatedPower

	others := make([]Session, 0, len(st.sessions)-1)
	for id, s := range st.sessions {
		if id != sessionID {
			others = append(others, s)
		}
	}

	allocated := AllocateForNewSession(others, st.config.Chargers, st.config.GridCapacity, hardcap, updated)
	st.sessions[sessionID] = allocated
	st.mu.Unlock()

	st.notify(EventSessionUpdated, allocated)
	return allocated, nil
}

func (st *State) notify(event SessionEvent, session Session) {
	if st.OnSessionEvent != nil {
		st.OnSessionEvent(event, session)
	}
}
