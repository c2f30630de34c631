// Package ws carries alert events between ingestion and the alerter over
// WebSocket. Every event is answered with an Ack.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/domain"
)

const (
	AckReceived = "received"
	AckError    = "error"
)

type Ack struct {
	Status    string           `json:"status"`
	EventType domain.EventType `json:"event_type,omitempty"`
	DeviceID  string           `json:"device_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Dispatcher queues an accepted event for rule evaluation.
type Dispatcher interface {
	Dispatch(event domain.AlertEvent) bool
}

type Server struct {
	alerts   Dispatcher
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(alerts Dispatcher, logger *slog.Logger) *Server {
	return &Server{
		alerts: alerts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if err := conn.WriteJSON(s.accept(data)); err != nil {
			s.logger.Warn("websocket write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *Server) accept(data []byte) Ack {
	var event domain.AlertEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return Ack{Status: AckError, Reason: "invalid event: " + err.Error()}
	}
	if event.EventType != domain.EventGPS && event.EventType != domain.EventFault {
		return Ack{Status: AckError, Reason: "unknown event_type " + string(event.EventType)}
	}
	if event.DeviceID == "" {
		return Ack{Status: AckError, Reason: "missing device_id"}
	}
	if !s.alerts.Dispatch(event) {
		return Ack{Status: AckError, EventType: event.EventType, DeviceID: event.DeviceID, Reason: "alert not queued"}
	}
	s.logger.Debug("alert event received", "event_type", event.EventType, "device_id", event.DeviceID)
	return Ack{Status: AckReceived, EventType: event.EventType, DeviceID: event.DeviceID}
}
