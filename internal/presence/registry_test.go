package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("alice", "c1")
	r.Register("alice", "c2")

	conn, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "c2", conn)
	assert.Equal(t, []string{"alice"}, r.Online())
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("alice", "c1")
	r.Register("alice", "c1")

	assert.True(t, r.Unregister("c1"))
	_, ok := r.Lookup("alice")
	assert.False(t, ok)
}

func TestStaleUnregisterKeepsNewerConnection(t *testing.T) {
	r := NewRegistry(nil)

	r.Register("alice", "old")
	r.Register("alice", "new")

	assert.False(t, r.Unregister("old"))
	conn, ok := r.Lookup("alice")
	assert.True(t, ok)
	assert.Equal(t, "new", conn)

	assert.True(t, r.Unregister("new"))
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
	assert.Empty(t, r.Online())
}

func TestUnregisterUnknownConnection(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Unregister("nope"))
}

func TestOnlineIsSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("carol", "3")
	r.Register("alice", "1")
	r.Register("bob", "2")

	assert.Equal(t, []string{"alice", "bob", "carol"}, r.Online())
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			conn := fmt.Sprintf("c%d", i)
			r.Register(user, conn)
			r.Lookup(user)
			r.Online()
			r.Unregister(conn)
		}(i)
	}
	wg.Wait()

	// Each connection was unregistered after its own register, so the
	// last one registered for a user always removes the entry.
	assert.Empty(t, r.Online())
}
