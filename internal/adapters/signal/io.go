package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sharepad/sharepad/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	// A dead writer must not leave the connection half-open: rooms would
	// keep filling the send buffer and dropping frames as backpressure.
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Engine.OnDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(sid, data)
		}
	}
}

// dispatch routes one inbound frame by its envelope type. A malformed
// or unknown frame is logged and dropped; it never tears the
// connection down.
func (ctl *Controller) dispatch(sid core.SessionID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return
	}

	switch env.Type {
	case intentJoin:
		ctl.handleJoin(sid, data)
	case intentCodeChange:
		ctl.handleCodeChange(sid, data)
	case intentLanguageChange:
		ctl.handleLanguageChange(sid, data)
	case intentCompileCode:
		ctl.handleCompileCode(sid, data)
	case intentTyping:
		ctl.handleTyping(sid, data)
	case intentLeaveRoom:
		ctl.handleLeaveRoom(sid)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown intent")
	}
}
