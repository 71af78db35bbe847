package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/transport"
)

// Config contains page agent connection settings
type Config struct {
	ServerURL string // ws://host:port/ws
	Tab       string
	Username  string
	Password  string
	// HandshakeTimeout bounds the websocket dial
	HandshakeTimeout time.Duration
}

// Client connects a page to the relay server and answers its requests.
// Messages are handled one at a time, so the page has a single writer.
type Client struct {
	config Config
	page   transport.Target
	logger *logger.Logger
	dialer *websocket.Dialer
}

// NewClient creates an agent serving page
func NewClient(config Config, page transport.Target, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}

	return &Client{
		config: config,
		page:   page,
		logger: log.WithComponent("agent"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// Run connects and serves requests until ctx is done or the server closes
// the connection
func (c *Client) Run(ctx context.Context) error {
	target, err := c.endpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.config.Username != "" || c.config.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
		header.Set("Authorization", "Basic "+creds)
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to %s: %s: %w", c.config.ServerURL, resp.Status, err)
		}
		return fmt.Errorf("failed to connect to %s: %w", c.config.ServerURL, err)
	}
	defer conn.Close()

	c.logger.Info("Agent connected", zap.String("server", c.config.ServerURL), zap.String("tab", c.config.Tab))

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var msg transport.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Agent disconnected")
				return nil
			}
			return fmt.Errorf("agent connection lost: %w", err)
		}

		reply := c.handle(ctx, msg)
		if reply == nil {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			return fmt.Errorf("failed to reply: %w", err)
		}
	}
}

// handle produces the reply to one server message, or nil for messages
// that need none
func (c *Client) handle(ctx context.Context, msg transport.Message) *transport.Message {
	switch msg.Type {
	case transport.TypeRun:
		result, err := c.page.Send(ctx, msg.Groups)
		if err != nil {
			c.logger.Error("Run failed", zap.String("id", msg.ID), zap.Error(err))
			return &transport.Message{Type: transport.TypeError, ID: msg.ID, Error: err.Error()}
		}
		if result == nil {
			return nil
		}
		return &transport.Message{Type: transport.TypeResult, ID: msg.ID, Result: result}

	case transport.TypeAttach:
		if err := c.page.Attach(ctx); err != nil {
			c.logger.Error("Reload failed", zap.String("id", msg.ID), zap.Error(err))
			return &transport.Message{Type: transport.TypeError, ID: msg.ID, Error: err.Error()}
		}
		c.logger.Info("Page reloaded", zap.String("id", msg.ID))
		return &transport.Message{Type: transport.TypeReady, ID: msg.ID}

	default:
		c.logger.Debug("Ignoring message", zap.String("type", msg.Type))
		return nil
	}
}

// endpoint adds the tab name to the server URL
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("server URL must use ws, wss, http or https")
	}

	if c.config.Tab != "" {
		q := u.Query()
		q.Set("tab", c.config.Tab)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
