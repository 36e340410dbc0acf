// Package session keeps per-session turn history in process memory.
package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type entry struct {
	mu      sync.Mutex
	turns   []Turn
	cleared bool
}

// Registry maps a session id to its bounded turn history. Sessions idle
// longer than the TTL are dropped. Each session has its own lock.
type Registry struct {
	cache    *cache.Cache
	maxTurns int
	ttl      time.Duration

	mu  sync.Mutex // guards entry creation
	now func() time.Time
}

func NewRegistry(maxTurns int, idleTTL time.Duration) *Registry {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	if idleTTL <= 0 {
		idleTTL = cache.NoExpiration
	}
	cleanup := 10 * time.Minute
	if idleTTL > 0 && idleTTL < cleanup {
		cleanup = idleTTL
	}
	return &Registry{
		cache:    cache.New(idleTTL, cleanup),
		maxTurns: maxTurns,
		ttl:      idleTTL,
		now:      time.Now,
	}
}

func (r *Registry) lookup(id string, create bool) *entry {
	if x, found := r.cache.Get(id); found {
		return x.(*entry)
	}
	if !create {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if x, found := r.cache.Get(id); found {
		return x.(*entry)
	}
	e := &entry{}
	r.cache.Set(id, e, cache.DefaultExpiration)
	return e
}

// History returns a copy of the session's turns, oldest first.
func (r *Registry) History(id string) []Turn {
	e := r.lookup(id, false)
	if e == nil {
		return []Turn{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cleared {
		return []Turn{}
	}
	r.touch(id, e)
	return append([]Turn(nil), e.turns...)
}

func (r *Registry) AppendTurn(id string, role Role, text string) {
	r.Append(id, Turn{Role: role, Text: text})
}

// Append adds turns atomically, then evicts the oldest beyond the limit.
func (r *Registry) Append(id string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	e := r.lookup(id, true)
	e.mu.Lock()
	for e.cleared {
		e.mu.Unlock()
		e = r.lookup(id, true)
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	now := r.now()
	for _, t := range turns {
		if t.At.IsZero() {
			t.At = now
		}
		e.turns = append(e.turns, t)
	}
	if over := len(e.turns) - r.maxTurns; over > 0 {
		e.turns = append([]Turn(nil), e.turns[over:]...)
	}
	r.touch(id, e)
}

// Clear drops the session. An Append already holding the old entry
// starts a fresh session instead of reviving the cleared one.
func (r *Registry) Clear(id string) {
	e := r.lookup(id, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleared = true
	r.cache.Delete(id)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// touch resets the idle timer. Re-setting the same entry also revives a
// session that expired while a request held it.
func (r *Registry) touch(id string, e *entry) {
	r.cache.Set(id, e, cache.DefaultExpiration)
}
