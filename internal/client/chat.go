package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChatSession is an open WebSocket chat with the server.
type ChatSession struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

type socketReply struct {
	ChatReply
	Error string `json:"error,omitempty"`
}

// DialChat opens a WebSocket chat session for userID.
func (c *Client) DialChat(ctx context.Context, userID string) (*ChatSession, error) {
	// Convert HTTP endpoint to WebSocket endpoint
	wsEndpoint := c.baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/therapy-chat/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	header := http.Header{}
	if c.clientID != "" {
		header.Set("X-Client-ID", c.clientID)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connect: %w", &APIError{StatusCode: resp.StatusCode, Message: resp.Status})
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &ChatSession{conn: conn}, nil
}

// Send sends one message and waits for the reply. Cancelling ctx closes
// the session.
func (s *ChatSession) Send(ctx context.Context, message string) (*ChatReply, error) {
	if err := s.conn.WriteJSON(map[string]string{"message": message}); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

	var reply socketReply
	if err := s.conn.ReadJSON(&reply); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return &reply.ChatReply, nil
}

// Close ends the session. It is safe to call more than once.
func (s *ChatSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
