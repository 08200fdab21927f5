package rendercache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}

func TestCache_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls sync.Map
	render := func(ctx context.Context, key string) ([]byte, error) {
		n, _ := calls.LoadOrStore(key, new(int))
		*n.(*int)++
		<-release
		return []byte("svg:" + key), nil
	}

	c := New(render)
	c.Start(context.Background())
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := c.Request("x^2")
			assert.Equal(t, Pending, st.Status)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Enqueued())
	close(release)

	waitFor(t, func() bool {
		st, _ := c.Peek("x^2")
		return st.Status == Ready
	})
	st := c.Request("x^2")
	assert.Equal(t, Ready, st.Status)
	assert.Equal(t, "svg:x^2", string(st.Data))
	assert.Equal(t, 1, c.Enqueued())

	n, _ := calls.Load("x^2")
	assert.Equal(t, 1, *n.(*int))
}

func TestCache_FailureIsTerminal(t *testing.T) {
	c := New(func(ctx context.Context, key string) ([]byte, error) {
		return nil, errors.New("bad tex")
	})
	c.Start(context.Background())
	defer c.Close()

	c.Request("\\frac")
	waitFor(t, func() bool {
		st, _ := c.Peek("\\frac")
		return st.Terminal()
	})

	st := c.Request("\\frac")
	assert.Equal(t, Failed, st.Status)
	assert.Equal(t, "bad tex", st.Err)
	assert.Equal(t, 1, c.Enqueued(), "failed keys must not be retried")
}

func TestCache_ClearRequeues(t *testing.T) {
	c := New(func(ctx context.Context, key int) ([]byte, error) {
		return []byte{byte(key)}, nil
	})
	c.Start(context.Background())
	defer c.Close()

	c.Request(1)
	waitFor(t, func() bool {
		st, _ := c.Peek(1)
		return st.Status == Ready
	})
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Peek(1)
	assert.False(t, ok)

	assert.Equal(t, Pending, c.Request(1).Status)
	assert.Equal(t, 2, c.Enqueued())
}

func TestCache_ProcessesInEnqueueOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	c := New(func(ctx context.Context, key int) ([]byte, error) {
		mu.Lock()
		order = append(order, key)
		mu.Unlock()
		return nil, nil
	})

	for i := 0; i < 10; i++ {
		c.Request(i)
	}
	c.Start(context.Background())
	defer c.Close()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 10
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestCache_NotifiesAfterStore(t *testing.T) {
	notified := make(chan struct{}, 1)
	var c *Cache[string]
	c = New(func(ctx context.Context, key string) ([]byte, error) {
		return []byte("ok"), nil
	}, WithNotify(func() {
		st, _ := c.Peek("k")
		if st.Status == Ready {
			notified <- struct{}{}
		}
	}))
	c.Start(context.Background())
	defer c.Close()

	c.Request("k")
	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("notify was not called with the stored result")
	}
}

func TestCache_StoreKeepsTerminalState(t *testing.T) {
	c := New(func(ctx context.Context, key string) ([]byte, error) { return nil, nil })

	c.store("k", State{Status: Ready, Data: []byte("first")})
	c.store("k", State{Status: Failed, Err: "late"})

	st, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, Ready, st.Status)
	assert.Equal(t, "first", string(st.Data))
}

func TestCache_CloseWithoutStart(t *testing.T) {
	c := New(func(ctx context.Context, key string) ([]byte, error) { return nil, nil })
	c.Request("a")

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked")
	}

	assert.Equal(t, Pending, c.Request("b").Status)
	assert.Equal(t, 1, c.Enqueued())
}

func TestCache_Stats(t *testing.T) {
	c := New(func(ctx context.Context, key string) ([]byte, error) { return nil, nil })
	c.store("a", State{Status: Ready})
	c.store("b", State{Status: Failed})
	c.Request("c")

	stats := c.Stats()
	assert.Equal(t, 1, stats[Ready])
	assert.Equal(t, 1, stats[Failed])
	assert.Equal(t, 1, stats[Pending])
	c.Close()
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Status(9).String())
}
