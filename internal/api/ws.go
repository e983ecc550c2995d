package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/courierchat/internal/relay"
)

const wsReadTimeout = 60 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins; auth happens via
		// the authenticate frame, not the origin.
		return true
	},
}

// handleWebsocket upgrades the connection and processes frames until the
// client disconnects. The session starts unauthenticated; the first
// authenticate frame binds it in the presence directory.
func (s *Server) handleWebsocket(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the response; just log and return.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return nil
	}

	sess := relay.NewSession(ws, relay.SessionConfig{
		SendQueueSize: s.cfg.Relay.SendQueueSize,
		RateLimit:     s.cfg.Relay.RateLimit,
		RateBurst:     s.cfg.Relay.RateBurst,
	})
	sess.Start()
	defer s.engine.Disconnect(sess)

	ws.SetReadLimit(1 << 20) // 1MB payload cap
	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			log.Debug().Str("session_id", sess.ID).Err(err).Msg("websocket read ended")
			return nil
		}

		var frame relay.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.replyError(sess, errors.New("invalid payload"))
			continue
		}

		switch frame.Type {
		case relay.EventAuthenticate:
			s.handleAuthenticate(sess, frame)
		case relay.EventSendMessage:
			s.handleSendMessage(c, sess, frame)
		default:
			s.replyError(sess, errors.New("unknown frame type"))
		}
	}
}

func (s *Server) handleAuthenticate(sess *relay.Session, frame relay.InboundFrame) {
	ident, err := s.engine.Authenticate(sess, frame.Token)
	if err != nil {
		s.reply(sess, relay.NewAuthError(err.Error()))
		return
	}
	s.reply(sess, relay.NewAuthSuccess(ident))
}

func (s *Server) handleSendMessage(c echo.Context, sess *relay.Session, frame relay.InboundFrame) {
	_, err := s.engine.SendMessage(c.Request().Context(), sess, frame.To, frame.Content)
	if err != nil {
		s.replyError(sess, err)
	}
}

func (s *Server) reply(sess *relay.Session, frame interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_ = sess.Send(payload)
}

func (s *Server) replyError(sess *relay.Session, err error) {
	s.reply(sess, relay.NewError(err))
}
