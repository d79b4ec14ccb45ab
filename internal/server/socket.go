package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/ravan/internal/service"
)

const (
	socketReadLimit = 64 << 10
	socketWriteWait = 10 * time.Second
	socketPongWait  = 60 * time.Second
)

type socketRequest struct {
	Message string `json:"message"`
}

type socketResponse struct {
	*service.ChatReply
	Error string `json:"error,omitempty"`
}

// handleChatSocket runs a chat session over a WebSocket. Each text frame
// {"message"} is answered with {"reply","sessionEnding"} or {"error"}.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		s.writeError(w, r, &service.ValidationError{Field: "userId", Message: "is required"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(socketReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(conn, done)

	s.logger.Debug("chat socket opened", "user_id", userID)
	for {
		var req socketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("chat socket closed", "user_id", userID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))

		resp := socketResponse{}
		reply, err := s.deps.Chat.ReplyStream(r.Context(), userID, req.Message)
		switch {
		case err == nil:
			resp.ChatReply = reply
		case service.IsValidation(err):
			resp.Error = err.Error()
		default:
			s.logger.Error("chat socket turn failed", "user_id", userID, "error", err)
			resp.Error = "internal server error"
		}

		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("chat socket write failed", "user_id", userID, "error", err)
			return
		}
	}
}

// keepAlive pings the peer until done is closed.
func (s *Server) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				return
			}
		}
	}
}
