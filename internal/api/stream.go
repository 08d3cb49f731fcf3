package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/trial-match-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The REST surface already allows any origin; the socket follows suit.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 30 * time.Second
)

// StreamEvent is one message on the match stream socket.
type StreamEvent struct {
	Type  string             `json:"type"` // started, match, done, error
	Match *domain.TrialMatch `json:"match,omitempty"`

	Candidates int    `json:"candidates,omitempty"`
	Evaluated  int    `json:"evaluated,omitempty"`
	Matches    int    `json:"matches,omitempty"`
	Partial    bool   `json:"partial,omitempty"`
	Message    string `json:"message,omitempty"`
}

// handleMatchStream upgrades to a WebSocket, reads a single match request
// and streams ranked matches one message at a time, ending with a summary
// frame. Ordering over the socket is the ranking order.
func (s *Server) handleMatchStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

	var req MatchRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.writeStreamError(conn, "invalid match request: "+err.Error())
		return
	}

	profile := req.resolveProfile()
	if profile == nil {
		s.writeStreamError(conn, "profile or features required")
		return
	}

	catalog, err := s.catalog.Snapshot(c.Request.Context())
	if err != nil {
		s.writeStreamError(conn, "trial catalog unavailable")
		return
	}

	s.writeStreamEvent(conn, StreamEvent{Type: "started", Candidates: len(catalog)})

	report, err := s.matcher.Match(c.Request.Context(), profile, catalog)
	if err != nil {
		s.writeStreamError(conn, "matching run failed")
		return
	}

	for i := range report.Matches {
		if !s.writeStreamEvent(conn, StreamEvent{Type: "match", Match: &report.Matches[i]}) {
			return
		}
	}

	s.writeStreamEvent(conn, StreamEvent{
		Type:       "done",
		Candidates: report.Candidates,
		Evaluated:  report.Evaluated,
		Matches:    len(report.Matches),
		Partial:    report.Partial,
		Message:    report.Diagnostic,
	})
}

func (s *Server) writeStreamEvent(conn *websocket.Conn, event StreamEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(event); err != nil {
		s.logger.WithError(err).Debug("Match stream client gone")
		return false
	}
	return true
}

func (s *Server) writeStreamError(conn *websocket.Conn, message string) {
	s.writeStreamEvent(conn, StreamEvent{Type: "error", Message: message})
}
