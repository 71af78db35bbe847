package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/rules"
	"github.com/raaihank/regex-relay/internal/transport"
	"github.com/raaihank/regex-relay/internal/websocket"
)

func startHub(t *testing.T) (*websocket.Hub, string) {
	t.Helper()

	hub := websocket.NewHub(websocket.HubConfig{Username: "relay", Password: "relay"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestAgentServesRunsAndReloads(t *testing.T) {
	hub, serverURL := startHub(t)

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<div contenteditable><p>foo</p><p>foo</p></div>`), 0o644))

	page, err := transport.NewLocalTarget(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewClient(Config{ServerURL: serverURL, Tab: "tab-1", Username: "relay", Password: "relay"}, page, nil)
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return len(hub.Agents()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "tab-1", hub.Agents()[0].ID)

	dispatcher := transport.NewDispatcher(hub, transport.Config{Timeout: time.Second}, nil)
	result, err := dispatcher.Run(ctx, []rules.RunGroup{{Name: "G", Rules: []rules.RunRule{
		{Pattern: "foo", Replacement: "bar", Flags: "g", Enabled: true},
	}}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "<p>bar</p><p>bar</p>")

	target, err := hub.ActiveTarget(ctx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`<input value="bar bar"/>`), 0o644))
	require.NoError(t, target.Attach(ctx))

	result, err = target.Send(ctx, []rules.RunGroup{{Name: "G", Rules: []rules.RunRule{
		{Pattern: "bar", Replacement: "baz", Flags: "", Enabled: true},
	}}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgentReportsReloadFailure(t *testing.T) {
	hub, serverURL := startHub(t)

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<textarea>x</textarea>`), 0o644))
	page, err := transport.NewLocalTarget(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go NewClient(Config{ServerURL: serverURL, Username: "relay", Password: "relay"}, page, nil).Run(ctx)
	require.Eventually(t, func() bool { return len(hub.Agents()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))

	target, err := hub.ActiveTarget(ctx)
	require.NoError(t, err)
	assert.Error(t, target.Attach(ctx))
}

func TestAgentRejectedWithBadCredentials(t *testing.T) {
	_, serverURL := startHub(t)

	page := transport.NewDocumentTarget(nil, nil)
	err := NewClient(Config{ServerURL: serverURL, Username: "relay", Password: "nope"}, page, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEndpoint(t *testing.T) {
	c := NewClient(Config{ServerURL: "http://localhost:8080/ws", Tab: "a b"}, nil, nil)
	u, err := c.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?tab=a+b", u)

	c = NewClient(Config{ServerURL: "ftp://x"}, nil, nil)
	_, err = c.endpoint()
	assert.Error(t, err)
}
