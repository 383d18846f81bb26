package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"stationsems/internal/station"
)

// Server wires a station.State to its HTTP surface. It holds no mutable
// state of its own beyond what State already guards; handlers are thin
// translators between JSON and the core.
type Server struct {
	state  *station.State
	logger *logrus.Logger

	// LiveHandler, if set, is mounted at GET /station/status/stream. It is
	// left nil when no internal/live.Broadcaster was wired, in which case
	// the route simply doesn't exist.
	LiveHandler http.HandlerFunc
}

// NewServer builds a Server for state, logging through logger.
func NewServer(state *station.State, logger *logrus.Logger) *Server {
	return &Server{state: state, logger: logger}
}

// Router builds the gorilla/mux router exposing every route, wrapped in
// the logging and panic-recovery middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/station/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/station/config", s.handleReplaceConfig).Methods(http.MethodPost)
	r.HandleFunc("/station/status", s.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleStartSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/stop", s.handleStopSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/power-update", s.handlePowerUpdate).Methods(http.MethodPost)
	if s.LiveHandler != nil {
		r.HandleFunc("/station/status/stream", s.LiveHandler).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Config())
}

func (s *Server) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	var cfg station.StationConfig
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.state.ReplaceConfig(cfg)
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.state.Config()
	sessions := s.state.Sessions()

	resp := stationStatusResponse{
		StationID: cfg.StationID,
		Sessions:  make(map[uuid.UUID]sessionResponse, len(sessions)),
	}
	for id, sess := range sessions {
		resp.Sessions[id] = toSessionResponse(sess)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	connectorID := station.ConnectorID{ChargerID: req.ConnectorID.ChargerID, Idx: req.ConnectorID.Idx}
	sess, err := s.state.Start(connectorID, req.VehicleMaxPower)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: toSessionResponse(sess)})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if id, err := sessionIDFromPath(r); err == nil {
		s.state.Stop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePowerUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req powerUpdateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.state.PowerUpdate(id, req.ConsumedPower)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: toSessionResponse(sess)})
}

func sessionIDFromPath(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func toSessionResponse(s station.Session) sessionResponse {
	return sessionResponse{
		SessionID:       s.ID,
		ConnectorID:     connectorID{ChargerID: s.ConnectorID.ChargerID, Idx: s.ConnectorID.Idx},
		AllocatedPower:  s.AllocatedPower,
		VehicleMaxPower: s.VehicleMaxPower,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
