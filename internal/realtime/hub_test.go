package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []string
	closed   bool
	fail     bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) snapshot() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...), c.closed
}

func startHub(t *testing.T) (*Hub, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, ctx, cancel
}

func TestPublishReachesOnlyQueueSubscribers(t *testing.T) {
	h, ctx, _ := startHub(t)

	a, b := &fakeConn{}, &fakeConn{}
	h.Register(ctx, "q1", a)
	h.Register(ctx, "q2", b)

	h.Publish("q1", map[string]string{"serving": "u1"})

	require.Eventually(t, func() bool {
		msgs, _ := a.snapshot()
		return len(msgs) == 1
	}, time.Second, 5*time.Millisecond)

	msgs, _ := a.snapshot()
	require.JSONEq(t, `{"serving":"u1"}`, msgs[0])
	other, _ := b.snapshot()
	require.Empty(t, other)
}

func TestFailedWriteDropsClient(t *testing.T) {
	h, ctx, _ := startHub(t)

	bad := &fakeConn{fail: true}
	h.Register(ctx, "q1", bad)
	h.Publish("q1", "x")

	require.Eventually(t, func() bool {
		_, closed := bad.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterClosesConn(t *testing.T) {
	h, ctx, _ := startHub(t)

	c := &fakeConn{}
	h.Register(ctx, "q1", c)
	h.Unregister(ctx, "q1", c)

	require.Eventually(t, func() bool {
		_, closed := c.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	h, ctx, cancel := startHub(t)

	c := &fakeConn{}
	h.Register(ctx, "q1", c)
	cancel()

	require.Eventually(t, func() bool {
		_, closed := c.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)
}

func TestCloseQueueSendsFinalMessageAndDisconnects(t *testing.T) {
	h, ctx, _ := startHub(t)

	a, other := &fakeConn{}, &fakeConn{}
	h.Register(ctx, "q1", a)
	h.Register(ctx, "q2", other)

	h.CloseQueue("q1", map[string]bool{"success": false})

	require.Eventually(t, func() bool {
		_, closed := a.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)
	msgs, _ := a.snapshot()
	require.Equal(t, []string{`{"success":false}`}, msgs)

	// Later updates for the closed queue reach nobody.
	h.Publish("q1", "late")
	h.Publish("q2", "still here")
	require.Eventually(t, func() bool {
		msgs, _ := other.snapshot()
		return len(msgs) == 1
	}, time.Second, 5*time.Millisecond)
	msgs, _ = a.snapshot()
	require.Len(t, msgs, 1)
	_, closed := other.snapshot()
	require.False(t, closed)
}
