package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationsems/internal/station"
)

func testServer() (*Server, *station.State) {
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	st := station.New(station.StationConfig{
		StationID:    "ELECTRA_PARIS_15",
		GridCapacity: 400,
		Chargers: []station.ChargerConfig{
			{ID: "CP001", MaxPower: 200, Connectors: 2},
			{ID: "CP002", MaxPower: 200, Connectors: 2},
		},
	})
	return NewServer(st, logger), st
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s.Router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStartSession_Success(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions", startSessionRequest{
		ConnectorID:     connectorID{ChargerID: "CP001", Idx: 1},
		VehicleMaxPower: 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 100, resp.Session.AllocatedPower)
	assert.Equal(t, "CP001", resp.Session.ConnectorID.ChargerID)
}

func TestHandleStartSession_UnknownConnector(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions", startSessionRequest{
		ConnectorID:     connectorID{ChargerID: "UNKNOWN", Idx: 1},
		VehicleMaxPower: 100,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartSession_ConnectorAlreadyInUse(t *testing.T) {
	s, st := testServer()
	_, err := st.Start(station.ConnectorID{ChargerID: "CP001", Idx: 1}, 100)
	require.NoError(t, err)

	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions", startSessionRequest{
		ConnectorID:     connectorID{ChargerID: "CP001", Idx: 1},
		VehicleMaxPower: 100,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleStartSession_InvalidBody(t *testing.T) {
	s, _ := testServer()
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"chargerId": 5}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStopSession_IdempotentNoContent(t *testing.T) {
	s, st := testServer()
	sess, err := st.Start(station.ConnectorID{ChargerID: "CP001", Idx: 1}, 100)
	require.NoError(t, err)

	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions/"+sess.ID.String()+"/stop", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Stopping again is still a no-op 204, never an error.
	rec2 := doRequest(t, s.Router(), http.MethodPost, "/sessions/"+sess.ID.String()+"/stop", nil)
	assert.Equal(t, http.StatusNoContent, rec2.Code)
}

func TestHandlePowerUpdate_UnknownSession(t *testing.T) {
	s, _ := testServer()
	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions/00000000-0000-0000-0000-000000000000/power-update", powerUpdateRequest{ConsumedPower: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePowerUpdate_Success(t *testing.T) {
	s, st := testServer()
	sess, err := st.Start(station.ConnectorID{ChargerID: "CP001", Idx: 1}, 100)
	require.NoError(t, err)

	rec := doRequest(t, s.Router(), http.MethodPost, "/sessions/"+sess.ID.String()+"/power-update", powerUpdateRequest{ConsumedPower: 50})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 50, resp.Session.AllocatedPower)
	assert.EqualValues(t, 50, resp.Session.VehicleMaxPower)
}

func TestHandleGetStatus(t *testing.T) {
	s, st := testServer()
	_, err := st.Start(station.ConnectorID{ChargerID: "CP001", Idx: 1}, 100)
	require.NoError(t, err)

	rec := doRequest(t, s.Router(), http.MethodGet, "/station/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stationStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ELECTRA_PARIS_15", resp.StationID)
	assert.Len(t, resp.Sessions, 1)
}

func TestHandleReplaceConfig(t *testing.T) {
	s, st := testServer()
	_, err := st.Start(station.ConnectorID{ChargerID: "CP001", Idx: 1}, 100)
	require.NoError(t, err)

	newCfg := station.StationConfig{
		StationID:    "NEW_STATION",
		GridCapacity: 50,
		Chargers:     []station.ChargerConfig{{ID: "CPX", MaxPower: 50, Connectors: 1}},
	}
	rec := doRequest(t, s.Router(), http.MethodPost, "/station/config", newCfg)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.Sessions())
	assert.Equal(t, "NEW_STATION", st.Config().StationID)
}
