// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/auth"
	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/middleware"
	"github.com/marousta/njmpu-api/internal/models"
)

// inboundMessage is the envelope clients send over the persistent
// connection. Only game input is accepted inbound; every lobby and
// matchmaking command goes through the HTTP endpoints.
type inboundMessage struct {
	Namespace string `json:"namespace"`
	Action    string `json:"action"`
	Data      struct {
		Move string `json:"move"`
	} `json:"data"`
}

// WSHandler upgrades the single persistent connection per device. One user
// may hold several at once; each gets its own connection id.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"njmpu"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "njmpu" {
		c.Close(BadSubprotocolError, "client must speak the njmpu subprotocol")
		return
	}

	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	userIDStr, expiry, err := auth.AuthenticateJWT(token)
	if err != nil {
		s.Log.Warnf("websocket auth failed (%s): %v", remoteAddr, err)
		c.Close(InvalidAuthTokenError, "authentication failed")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.Close(InvalidUserIDError, "invalid user id in token")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := &models.Connection{
		ID:          uuid.New(),
		UserID:      userID,
		TokenExpiry: expiry,
		OutChan:     make(chan events.Event, 32),
		Cancel:      cancel,
	}

	s.Registry.Register(conn)
	s.Registry.Send(conn, events.Connected(conn.ID))

	status, _ := s.Registry.StatusOf(userID)
	s.Lobbies.PushStatus(ctx, userID, status)

	middleware.LogWebSocketConnect(s.Log, remoteAddr, r.URL.Path)

	go s.writePump(ctx, c, conn)
	readErr := s.readPump(ctx, c, conn)

	s.teardown(conn)

	middleware.LogWebSocketDisconnect(s.Log, remoteAddr, r.URL.Path, readErr)
}

// teardown runs the ordered disconnect cleanup: registry first, then queue,
// then lobby, then the final presence broadcast, so the broadcast reflects
// the post-cleanup truth.
func (s *Server) teardown(conn *models.Connection) {
	if conn.Cancel != nil {
		conn.Cancel()
	}
	s.Registry.Unregister(conn)
	s.Queue.Remove(conn.UserID)
	s.Lobbies.HandleDisconnect(context.Background(), conn)

	finalStatus, _ := s.Registry.StatusOf(conn.UserID)
	s.Lobbies.PushStatus(context.Background(), conn.UserID, finalStatus)
}

// readPump consumes inbound frames until the connection dies. Malformed or
// unroutable messages are dropped without breaking the connection.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *models.Connection) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet inboundMessage
		if err := json.Unmarshal(msg, &packet); err != nil {
			s.Log.WithFields(logrus.Fields{
				"connection": conn.ID,
				"user":       conn.UserID,
			}).Debugf("Dropping invalid frame: %v", err)
			continue
		}

		switch {
		case packet.Namespace == "game" && packet.Action == "input":
			s.Sessions.Input(conn, packet.Data.Move)
		default:
			s.Log.WithFields(logrus.Fields{
				"connection": conn.ID,
				"namespace":  packet.Namespace,
				"action":     packet.Action,
			}).Debug("Dropping unroutable frame")
		}
	}
}

// writePump drains the connection's outgoing channel onto the wire and keeps
// the connection alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *models.Connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.Log.Warnf("Failed to marshal outgoing event for %v: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Log.Warnf("Failed to write to websocket for %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Log.Warnf("Ping failed for %v, assuming disconnect: %v", conn.UserID, err)
				return
			}
		}
	}
}
