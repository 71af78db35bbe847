package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/regex-relay/internal/engine"
	"github.com/raaihank/regex-relay/internal/rules"
)

// scriptedTarget answers sends from a queue. A nil entry never answers and
// waits for the context instead.
type scriptedTarget struct {
	mu        sync.Mutex
	responses []*engine.RunResult
	sends     int
	attaches  int
	attachErr error
}

func (s *scriptedTarget) Send(ctx context.Context, _ []rules.RunGroup) (*engine.RunResult, error) {
	s.mu.Lock()
	s.sends++
	var resp *engine.RunResult
	if len(s.responses) > 0 {
		resp = s.responses[0]
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()

	if resp == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, nil
}

func (s *scriptedTarget) Attach(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attaches++
	return s.attachErr
}

type staticResolver struct {
	target Target
	err    error
}

func (r staticResolver) ActiveTarget(context.Context) (Target, error) {
	return r.target, r.err
}

var request = []rules.RunGroup{{Name: "G", Rules: []rules.RunRule{{Pattern: "a", Replacement: "b", Flags: "g", Enabled: true}}}}

func fastDispatcher(r Resolver) *Dispatcher {
	return NewDispatcher(r, Config{Timeout: 20 * time.Millisecond, AttachTimeout: time.Second}, nil)
}

func TestRunAnswersFirstTime(t *testing.T) {
	target := &scriptedTarget{responses: []*engine.RunResult{{Total: 3}}}

	result, err := fastDispatcher(staticResolver{target: target}).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, target.sends)
	assert.Zero(t, target.attaches)
}

func TestRunRetriesOnceAfterAttach(t *testing.T) {
	target := &scriptedTarget{responses: []*engine.RunResult{nil, {Total: 1}}}

	result, err := fastDispatcher(staticResolver{target: target}).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 2, target.sends)
	assert.Equal(t, 1, target.attaches)
}

func TestRunGivesUpAfterSecondTimeout(t *testing.T) {
	target := &scriptedTarget{}

	start := time.Now()
	_, err := fastDispatcher(staticResolver{target: target}).Run(context.Background(), request)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Equal(t, "No response (content script not injected?)", err.Error())
	assert.Equal(t, 2, target.sends, "exactly one retry")
	assert.Equal(t, 1, target.attaches)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunAttachFailure(t *testing.T) {
	target := &scriptedTarget{attachErr: errors.New("page closed")}

	_, err := fastDispatcher(staticResolver{target: target}).Run(context.Background(), request)
	assert.ErrorIs(t, err, ErrAttachFailed)
	assert.Contains(t, err.Error(), "page closed")
	assert.Equal(t, 1, target.sends)
}

func TestRunNoActiveTarget(t *testing.T) {
	_, err := fastDispatcher(staticResolver{err: errors.New("no tabs")}).Run(context.Background(), request)
	assert.ErrorIs(t, err, ErrNoActiveTarget)

	_, err = fastDispatcher(staticResolver{}).Run(context.Background(), request)
	assert.ErrorIs(t, err, ErrNoActiveTarget)
}

func TestRunCallerCancellation(t *testing.T) {
	target := &scriptedTarget{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastDispatcher(staticResolver{target: target}).Run(ctx, request)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, target.attaches)
}

func TestTimeoutDefaults(t *testing.T) {
	d := NewDispatcher(staticResolver{}, Config{}, nil)
	assert.Equal(t, DefaultTimeout, d.Timeout())

	d.SetTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, d.Timeout())

	d.SetTimeout(0)
	assert.Equal(t, 1200*time.Millisecond, d.Timeout())
}

func TestLocalTargetWritesBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<textarea id="t">a a</textarea>`), 0o644))

	target, err := NewLocalTarget(path, nil)
	require.NoError(t, err)

	result, err := NewDispatcher(target, Config{}, nil).Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(saved), ">b b</textarea>")

	require.NoError(t, os.WriteFile(path, []byte(`<textarea id="t">aaa</textarea>`), 0o644))
	require.NoError(t, target.Attach(context.Background()))

	result, err = target.Send(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
}

func TestLocalTargetMissingFile(t *testing.T) {
	_, err := NewLocalTarget(filepath.Join(t.TempDir(), "missing.html"), nil)
	assert.Error(t, err)
}
