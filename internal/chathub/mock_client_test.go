package chathub_test

import (
	"sync/atomic"
	"testing"
	"time"

	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 2 * time.Second

// MockClient records every delivered event. Setting reject makes Deliver
// behave like a connection whose buffer is full.
type MockClient struct {
	id     string
	events chan models.ServerEvent
	reject atomic.Bool
	closed atomic.Bool
}

func newMockClient(id string) *MockClient {
	return &MockClient{id: id, events: make(chan models.ServerEvent, 128)}
}

func (c *MockClient) GetConnectionID() string { return c.id }

func (c *MockClient) Deliver(ev models.ServerEvent) bool {
	if c.closed.Load() || c.reject.Load() {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {}

func (c *MockClient) Close() { c.closed.Store(true) }

// next returns the next delivered event, failing the test if none arrives.
func (c *MockClient) next(t *testing.T) models.ServerEvent {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(eventTimeout):
		require.FailNowf(t, "no event", "client %s received nothing", c.id)
		return models.ServerEvent{}
	}
}

// expect returns the next event and asserts its type.
func (c *MockClient) expect(t *testing.T, typ string) models.ServerEvent {
	t.Helper()
	ev := c.next(t)
	require.Equal(t, typ, ev.Type, "client %s: unexpected event %+v", c.id, ev)
	return ev
}

// collect gathers n events of type typ, skipping any other type.
func (c *MockClient) collect(t *testing.T, typ string, n int) []models.ServerEvent {
	t.Helper()
	out := make([]models.ServerEvent, 0, n)
	for len(out) < n {
		if ev := c.next(t); ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *MockClient) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case ev := <-c.events:
		assert.Failf(t, "unexpected event", "client %s received %+v", c.id, ev)
	case <-time.After(100 * time.Millisecond):
	}
}
