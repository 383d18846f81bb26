package station

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() StationConfig {
	return StationConfig{
		StationID:    "ELECTRA_PARIS_15",
		GridCapacity: 400,
		Chargers: []ChargerConfig{
			{ID: "CP001", MaxPower: 200, Connectors: 2},
			{ID: "CP002", MaxPower: 200, Connectors: 2},
			{ID: "CP003", MaxPower: 300, Connectors: 2},
		},
	}
}

func TestState_ChargerCapacityCap(t *testing.T) {
	st := New(testConfig())

	s1, err := st.Start(ConnectorID{"CP001", 1}, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 100, s1.AllocatedPower)

	s2, err := st.Start(ConnectorID{"CP001", 2}, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 100, s2.AllocatedPower)
}

func TestState_StationCapacityCap(t *testing.T) {
	st := New(testConfig())

	_, err := st.Start(ConnectorID{"CP001", 1}, 100)
	require.NoError(t, err)
	_, err = st.Start(ConnectorID{"CP001", 2}, 200)
	require.NoError(t, err)

	s3, err := st.Start(ConnectorID{"CP003", 1}, 300)
	require.NoError(t, err)
	assert.EqualValues(t, 200, s3.AllocatedPower)

	s4, err := st.Start(ConnectorID{"CP002", 1}, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 0, s4.AllocatedPower)
}

func TestState_FreeingViaStop(t *testing.T) {
	st := New(testConfig())

	_, _ = st.Start(ConnectorID{"CP001", 1}, 100)
	_, _ = st.Start(ConnectorID{"CP001", 2}, 200)
	s3, _ := st.Start(ConnectorID{"CP003", 1}, 300)
	_, _ = st.Start(ConnectorID{"CP002", 1}, 200)

	st.Stop(s3.ID)

	s5, err := st.Start(ConnectorID{"CP002", 2}, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 100, s5.AllocatedPower)
}

func TestState_TelemetryDownshiftFreesHeadroom(t *testing.T) {
	st := New(testConfig())

	s1, _ := st.Start(ConnectorID{"CP001", 1}, 100)
	s2, _ := st.Start(ConnectorID{"CP001", 2}, 200)
	require.EqualValues(t, 100, s2.AllocatedPower)

	updated, err := st.PowerUpdate(s1.ID, 80)
	require.NoError(t, err)
	assert.EqualValues(t, 80, updated.VehicleMaxPower)
	assert.EqualValues(t, 80, updated.AllocatedPower)

	snapshot := st.Sessions()
	assert.EqualValues(t, 100, snapshot[s2.ID].AllocatedPower)
}

func TestState_CrossChargerReallocationOnUpdate(t *testing.T) {
	// Branches from the same point scenario 2 reaches, stopping short of
	// its second start (CP002:1) so the station sits exactly at its grid
	// ceiling going into the two telemetry updates below.
	st := New(testConfig())

	s1, _ := st.Start(ConnectorID{"CP001", 1}, 100)
	_, _ = st.Start(ConnectorID{"CP001", 2}, 200)
	s3, _ := st.Start(ConnectorID{"CP003", 1}, 300)
	require.EqualValues(t, 200, s3.AllocatedPower)

	_, err := st.PowerUpdate(s1.ID, 80)
	require.NoError(t, err)

	updated, err := st.PowerUpdate(s3.ID, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 300, updated.VehicleMaxPower)
	assert.EqualValues(t, 200, updated.AllocatedPower)
}

func TestState_CrossChargerReallocationOnUpdate_AllFourSessionsActive(t *testing.T) {
	// Same two telemetry updates as the test above, but carries CP002:1
	// forward as an active session instead of stopping short of its
	// start. A fourth under-max session competing in the same fair-share
	// round divides the round's per-session award further, so the fixed
	// point the second PowerUpdate converges to gives CP003:1 a smaller
	// award than the three-session branch point does.
	st := New(testConfig())

	s1, _ := st.Start(ConnectorID{"CP001", 1}, 100)
	_, _ = st.Start(ConnectorID{"CP001", 2}, 200)
	s3, _ := st.Start(ConnectorID{"CP003", 1}, 300)
	require.EqualValues(t, 200, s3.AllocatedPower)
	s4, _ := st.Start(ConnectorID{"CP002", 1}, 200)
	require.EqualValues(t, 0, s4.AllocatedPower)

	_, err := st.PowerUpdate(s1.ID, 80)
	require.NoError(t, err)

	updated, err := st.PowerUpdate(s3.ID, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 300, updated.VehicleMaxPower)
	assert.EqualValues(t, 100, updated.AllocatedPower)
}

func TestState_InvalidConnector(t *testing.T) {
	st := New(testConfig())

	_, err := st.Start(ConnectorID{"CP001", 0}, 100)
	assertKind(t, err, ConnectorNotFound)

	_, err = st.Start(ConnectorID{"CP001", 5}, 100)
	assertKind(t, err, ConnectorNotFound)

	_, err = st.Start(ConnectorID{"UNKNOWN", 1}, 100)
	assertKind(t, err, ConnectorNotFound)

	_, err = st.Start(ConnectorID{"CP001", 1}, 100)
	require.NoError(t, err)

	_, err = st.Start(ConnectorID{"CP001", 1}, 100)
	assertKind(t, err, ConnectorAlreadyInUse)
}

func TestState_PowerUpdateUnknownSession(t *testing.T) {
	st := New(testConfig())
	_, err := st.PowerUpdate(uuid.New(), 10)
	assertKind(t, err, SessionNotFound)
}

func TestState_StopIsIdempotentAndNeverFails(t *testing.T) {
	st := New(testConfig())
	s1, _ := st.Start(ConnectorID{"CP001", 1}, 100)

	st.Stop(s1.ID)
	st.Stop(s1.ID) // stopping an already-stopped session must not panic
	st.Stop(uuid.New())

	assert.Empty(t, st.Sessions())
}

func TestState_ConfigReplacementDropsAllSessions(t *testing.T) {
	st := New(testConfig())
	_, _ = st.Start(ConnectorID{"CP001", 1}, 100)
	require.Len(t, st.Sessions(), 1)

	st.ReplaceConfig(StationConfig{
		StationID:    "NEW_STATION",
		GridCapacity: 50,
		Chargers:     []ChargerConfig{{ID: "CPX", MaxPower: 50, Connectors: 1}},
	})

	assert.Empty(t, st.Sessions())
	assert.Equal(t, "NEW_STATION", st.Config().StationID)
}

func TestState_OnSessionEventFiresAfterUnlock(t *testing.T) {
	st := New(testConfig())
	var events []SessionEvent
	st.OnSessionEvent = func(event SessionEvent, _ Session) {
		// If the hook fired while the lock was still held, this call
		// would deadlock instead of completing.
		st.Sessions()
		events = append(events, event)
	}

	s1, _ := st.Start(ConnectorID{"CP001", 1}, 100)
	_, _ = st.PowerUpdate(s1.ID, 50)
	st.Stop(s1.ID)

	assert.Equal(t, []SessionEvent{EventSessionStarted, EventSessionUpdated, EventSessionStopped}, events)
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	sessErr, ok := err.(*SessionError)
	require.True(t, ok, "expected *SessionError, got %T", err)
	assert.Equal(t, kind, sessErr.Kind)
}
