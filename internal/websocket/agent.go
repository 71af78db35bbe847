package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/transport"
)

// errAgentGone is returned for requests to an agent whose connection closed
var errAgentGone = errors.New("agent disconnected")

// Send delivers a run request and waits for the matching FR_RESULT
func (a *Agent) Send(ctx context.Context, groups []rules.RunGroup) (*engine.RunResult, error) {
	resp, err := a.request(ctx, transport.Message{Type: transport.TypeRun, Groups: groups})
	if err != nil {
		return nil, err
	}
	if resp.Type != transport.TypeResult {
		return nil, fmt.Errorf("unexpected %s reply to run request", resp.Type)
	}
	return resp.Result, nil
}

// Attach asks the agent to reload its page and waits for FR_READY
func (a *Agent) Attach(ctx context.Context) error {
	resp, err := a.request(ctx, transport.Message{Type: transport.TypeAttach})
	if err != nil {
		return err
	}
	if resp.Type != transport.TypeReady {
		return fmt.Errorf("unexpected %s reply to attach", resp.Type)
	}
	return nil
}

// request sends msg under a fresh id and waits for the reply carrying the
// same id. FR_ERROR replies become errors.
func (a *Agent) request(ctx context.Context, msg transport.Message) (transport.Message, error) {
	msg.ID = uuid.NewString()
	reply := make(chan transport.Message, 1)

	a.mu.Lock()
	a.pending[msg.ID] = reply
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pending, msg.ID)
		a.mu.Unlock()
	}()

	select {
	case a.send <- msg:
	case <-a.closed:
		return transport.Message{}, errAgentGone
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
	a.hub.countRequest()

	select {
	case resp := <-reply:
		if resp.Type == transport.TypeError {
			return resp, errors.New(resp.Error)
		}
		return resp, nil
	case <-a.closed:
		return transport.Message{}, errAgentGone
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

// resolve hands a reply to the request waiting on its id. Replies nobody
// waits for any more are dropped.
func (a *Agent) resolve(msg transport.Message) {
	a.mu.Lock()
	reply, ok := a.pending[msg.ID]
	a.mu.Unlock()

	if !ok {
		a.hub.logger.Debug("Dropping unsolicited agent message",
			zap.String("component", "websocket"),
			zap.String("agent_id", a.ID),
			zap.String("type", msg.Type),
			zap.String("id", msg.ID),
		)
		return
	}

	a.hub.countResponse()
	select {
	case reply <- msg:
	default:
	}
}

func (a *Agent) close() {
	a.once.Do(func() {
		close(a.closed)
		a.conn.Close()
	})
}

// writePump serializes all writes to the connection
func (a *Agent) writePump() {
	cfg := a.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		a.conn.Close()
	}()

	for {
		select {
		case msg := <-a.send:
			a.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := a.conn.WriteJSON(msg); err != nil {
				a.hub.logger.Error("Failed to write agent message",
					zap.String("component", "websocket"),
					zap.String("agent_id", a.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			a.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-a.closed:
			a.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			a.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump routes replies until the connection fails, then unregisters
func (a *Agent) readPump() {
	h := a.hub
	defer func() {
		select {
		case h.unregister <- a:
		case <-h.done:
			a.close()
		}
	}()

	a.conn.SetReadLimit(h.config.MaxMessageSize)
	a.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	a.conn.SetPongHandler(func(string) error {
		a.mu.Lock()
		a.lastPing = time.Now()
		a.mu.Unlock()
		return a.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		var msg transport.Message
		if err := a.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("Agent connection error",
					zap.String("component", "websocket"),
					zap.String("agent_id", a.ID),
					zap.Error(err),
				)
			}
			return
		}

		a.resolve(msg)
	}
}
