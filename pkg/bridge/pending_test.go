package bridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/domain"
)

func newTestCall(id string) *pendingCall {
	return &pendingCall{
		requestID: id,
		toolName:  "lsp_hover",
		done:      make(chan callOutcome, 1),
	}
}

func TestPendingCall_ResolvesExactlyOnce(t *testing.T) {
	p := newTestCall("req-1")

	assert.True(t, p.resolve(callOutcome{resp: &domain.ToolCallResponse{Status: domain.StatusSuccess}}))
	assert.False(t, p.resolve(callOutcome{err: domain.NewToolCallError(domain.CodeTimeout, "late", nil)}))

	out := <-p.done
	require.NotNil(t, out.resp)
	assert.Equal(t, domain.StatusSuccess, out.resp.Status)

	select {
	case <-p.done:
		t.Fatal("second outcome delivered")
	default:
	}
}

func TestPendingCall_ConcurrentResolvers(t *testing.T) {
	p := newTestCall("req-2")

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.resolve(callOutcome{err: domain.NewToolCallError(domain.CodeDisconnected, "x", nil)}) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestPendingTable_TakeRemoves(t *testing.T) {
	tbl := newPendingTable()
	tbl.add(newTestCall("a"))

	assert.Equal(t, 1, tbl.len())
	require.NotNil(t, tbl.take("a"))
	assert.Nil(t, tbl.take("a"), "second take finds no entry")
	assert.Equal(t, 0, tbl.len())
}

func TestPendingTable_TakeUnknownID(t *testing.T) {
	tbl := newPendingTable()
	assert.Nil(t, tbl.take("never-registered"))
}

func TestPendingTable_SweepEmptiesTable(t *testing.T) {
	tbl := newPendingTable()
	for _, id := range []string{"a", "b", "c"} {
		tbl.add(newTestCall(id))
	}

	swept := tbl.sweep()
	assert.Len(t, swept, 3)
	assert.Equal(t, 0, tbl.len())
	assert.Empty(t, tbl.sweep())
}
