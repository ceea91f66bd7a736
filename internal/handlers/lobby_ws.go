// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"whist-lobby/internal/lobby"
	"whist-lobby/internal/presence"
)

// LobbyWSHandler upgrades a request to the lobby WebSocket and runs the
// connection's read/write pumps until it dies. One connection is one
// session; a dropped connection forfeits room membership via the
// presence monitor, never directly from here.
func LobbyWSHandler(logger *logrus.Logger, gw *Gateway, mon *presence.Monitor, origins []string, pingInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: origins,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		sess := lobby.NewSession(cancel)

		gw.Register(sess)
		mon.Track(sess.ID)

		logger.WithFields(logrus.Fields{
			"session": sess.ID,
			"remote":  remoteAddr,
		}).Info("lobby connection established")

		go writePump(ctx, c, sess, mon, pingInterval, logger)

		readPump(ctx, c, sess, gw, mon, logger)

		// The monitor dedupes: if a heartbeat timeout already forfeited
		// this session, Closed is a no-op.
		mon.Closed(sess.ID)
		c.Close(websocket.StatusNormalClosure, "session ended")
	}
}

// readPump decodes client intents off the socket and hands them to the
// gateway one at a time. Returns when the connection closes or its
// context is cancelled.
func readPump(ctx context.Context, c *websocket.Conn, sess *lobby.Session, gw *Gateway, mon *presence.Monitor, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.WithField("session", sess.ID).Info("websocket closed normally")
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.WithField("session", sess.ID).Warnf("read error: %v", err)
			}
			return
		}

		mon.Heartbeat(sess.ID)

		if typ != websocket.MessageText {
			logger.WithField("session", sess.ID).Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			logger.WithField("session", sess.ID).Warnf("invalid json: %v", err)
			sess.SendError("invalid JSON")
			continue
		}

		gw.HandleIntent(sess, packet)
	}
}

// writePump drains the session's outbound queue onto the socket and
// pings on a ticker. A pong counts as a heartbeat; a failed ping means
// the peer is gone and the pump exits, letting readPump observe the
// closure.
func writePump(ctx context.Context, c *websocket.Conn, sess *lobby.Session, mon *presence.Monitor, pingInterval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sess.Out:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WithField("session", sess.ID).Warnf("failed to marshal outgoing msg: %v", err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("session", sess.ID).Warnf("write failed: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("session", sess.ID).Warnf("ping failed, assuming disconnect: %v", err)
				return
			}
			mon.Heartbeat(sess.ID)
		}
	}
}
