// Package live pushes station status snapshots to subscribed WebSocket
// clients whenever a session mutates, so a dashboard doesn't need to poll
// GET /station/status.
package live

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"stationsems/internal/station"
)

// connectorID is the wire shape of a station.ConnectorID, nested rather
// than flattened so it matches the rest of the request surface.
type connectorID struct {
	ChargerID string `json:"chargerId"`
	Idx       uint8  `json:"idx"`
}

// sessionView is the wire shape of one session in a status snapshot.
type sessionView struct {
	SessionID       uuid.UUID   `json:"sessionId"`
	ConnectorID     connectorID `json:"connectorId"`
	AllocatedPower  uint32      `json:"allocatedPower"`
	VehicleMaxPower uint32      `json:"vehicleMaxPower"`
}

// statusSnapshot is broadcast to every connected client on each session
// mutation.
type statusSnapshot struct {
	StationID string        `json:"stationId"`
	Sessions  []sessionView `json:"sessions"`
}

// Broadcaster upgrades incoming connections on its Handler and pushes a
// statusSnapshot to every one of them whenever Handle is invoked.
type Broadcaster struct {
	state    *station.State
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewBroadcaster builds a Broadcaster reading snapshots from state.
func NewBroadcaster(state *station.State, logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		state:  state,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades the connection and registers it to receive snapshots
// until it disconnects.
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Errorf("Failed to upgrade websocket connection: %v", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	b.sendSnapshot(conn)

	go b.readUntilClosed(conn)
}

// readUntilClosed blocks consuming (and discarding) client frames purely
// to detect disconnects; clients never send this broadcaster anything
// meaningful.
func (b *Broadcaster) readUntilClosed(conn *websocket.Conn) {
	defer b.removeClient(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) removeClient(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}

// Handle is the station.State.OnSessionEvent hook: it pushes a fresh
// snapshot to every connected client.
func (b *Broadcaster) Handle(_ station.SessionEvent, _ station.Session) {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		b.sendSnapshot(conn)
	}
}

func (b *Broadcaster) sendSnapshot(conn *websocket.Conn) {
	cfg := b.state.Config()
	sessions := b.state.Sessions()

	snapshot := statusSnapshot{
		StationID: cfg.StationID,
		Sessions:  make([]sessionView, 0, len(sessions)),
	}
	for _, s := range sessions {
		snapshot.Sessions = append(snapshot.Sessions, sessionView{
			SessionID:       s.ID,
			ConnectorID:     connectorID{ChargerID: s.ConnectorID.ChargerID, Idx: s.ConnectorID.Idx},
			AllocatedPower:  s.AllocatedPower,
			VehicleMaxPower: s.VehicleMaxPower,
		})
	}

	if err := conn.WriteJSON(snapshot); err != nil {
		b.logger.Debugf("Failed to write websocket snapshot, dropping client: %v", err)
		b.removeClient(conn)
	}
}
