package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_NewSessionIsEmpty(t *testing.T) {
	r := NewRegistry(4, time.Hour)
	h := r.History("alice")
	assert.NotNil(t, h)
	assert.Empty(t, h)
	assert.Equal(t, 0, r.Len(), "reading does not create a session")
}

func TestAppend_EvictsOldestFirst(t *testing.T) {
	r := NewRegistry(4, time.Hour)
	for i := 0; i < 10; i++ {
		r.AppendTurn("alice", RoleUser, fmt.Sprintf("q%d", i))
		assert.LessOrEqual(t, len(r.History("alice")), 4)
	}

	h := r.History("alice")
	require.Len(t, h, 4)
	assert.Equal(t, "q6", h[0].Text)
	assert.Equal(t, "q9", h[3].Text)
}

func TestAppend_PairIsAtomic(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	r.Append("bob",
		Turn{Role: RoleUser, Text: "hi"},
		Turn{Role: RoleAssistant, Text: "hello"},
	)
	r.Append("bob",
		Turn{Role: RoleUser, Text: "again"},
		Turn{Role: RoleAssistant, Text: "sure"},
	)

	h := r.History("bob")
	require.Len(t, h, 3)
	assert.Equal(t, "hello", h[0].Text)
	assert.Equal(t, RoleAssistant, h[2].Role)
	assert.False(t, h[0].At.IsZero())
}

func TestHistory_ReturnsCopy(t *testing.T) {
	r := NewRegistry(5, time.Hour)
	r.AppendTurn("carol", RoleUser, "original")

	h := r.History("carol")
	h[0].Text = "mutated"

	assert.Equal(t, "original", r.History("carol")[0].Text)
}

func TestSessionsAreIndependent(t *testing.T) {
	r := NewRegistry(5, time.Hour)
	r.AppendTurn("a", RoleUser, "from a")
	r.AppendTurn("b", RoleUser, "from b")

	assert.Len(t, r.History("a"), 1)
	assert.Equal(t, "from b", r.History("b")[0].Text)

	r.Clear("a")
	assert.Empty(t, r.History("a"))
	assert.Len(t, r.History("b"), 1)
}

func TestConcurrentAppendSameSession(t *testing.T) {
	const writers, each = 8, 50
	r := NewRegistry(writers*each, time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				r.Append("shared",
					Turn{Role: RoleUser, Text: fmt.Sprintf("%d-%d", w, i)},
					Turn{Role: RoleAssistant, Text: "ok"},
				)
			}
		}(w)
	}
	wg.Wait()

	h := r.History("shared")
	require.Len(t, h, writers*each)
	for i := 0; i < len(h); i += 2 {
		assert.Equal(t, RoleUser, h[i].Role, "pairs never interleave")
		assert.Equal(t, RoleAssistant, h[i+1].Role)
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	r := NewRegistry(5, 50*time.Millisecond)
	r.AppendTurn("idle", RoleUser, "hello")

	assert.Eventually(t, func() bool {
		return len(r.History("idle")) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestClear_NotUndoneByInflightAppend(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := NewRegistry(10, time.Hour)
		r.AppendTurn("u", RoleUser, "before clear")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.AppendTurn("u", RoleUser, "racing")
		}()
		go func() {
			defer wg.Done()
			r.Clear("u")
		}()
		wg.Wait()

		for _, turn := range r.History("u") {
			require.NotEqual(t, "before clear", turn.Text, "iteration %d", i)
		}
	}
}

func TestAppend_AfterClearStartsFresh(t *testing.T) {
	r := NewRegistry(10, time.Hour)
	r.AppendTurn("u", RoleUser, "one")
	old := r.lookup("u", false)
	require.NotNil(t, old)

	r.Clear("u")
	assert.True(t, old.cleared)
	assert.Empty(t, r.History("u"))

	r.AppendTurn("u", RoleUser, "two")
	h := r.History("u")
	require.Len(t, h, 1)
	assert.Equal(t, "two", h[0].Text)
	assert.Len(t, old.turns, 1, "cleared entry is not written to")
}
