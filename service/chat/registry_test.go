package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	a1 := NewClient("alice", nil)
	a2 := NewClient("alice", nil)
	b1 := NewClient("bob", nil)

	require.NoError(t, r.Register(a1))
	require.NoError(t, r.Register(a2))
	require.NoError(t, r.Register(b1))

	// 同一连接重复登记幂等
	require.NoError(t, r.Register(a1))
	require.Len(t, r.ConnectionsFor("alice"), 2)
	require.Len(t, r.ConnectionsFor("bob"), 1)

	// 未知用户：空集合而不是错误
	require.Empty(t, r.ConnectionsFor("nobody"))

	r.Unregister(a1)
	require.Len(t, r.ConnectionsFor("alice"), 1)
	require.Equal(t, a2.ID, r.ConnectionsFor("alice")[0].ID)

	// 再次注销是 no-op
	r.Unregister(a1)
	require.Len(t, r.ConnectionsFor("alice"), 1)

	r.Unregister(a2)
	require.Empty(t, r.ConnectionsFor("alice"))
	require.Equal(t, 0, r.CountFor("alice"))
}

func TestRegistryRefusesUnauthenticated(t *testing.T) {
	r := NewRegistry()
	err := r.Register(NewClient("", nil))
	require.Error(t, err)
	require.Empty(t, r.ConnectionsFor("")) // nothing slipped in
	require.Error(t, r.Register(nil))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := NewClient("u", nil)
				require.NoError(t, r.Register(c))
				_ = r.ConnectionsFor("u")
				r.Unregister(c)
			}
		}()
	}
	wg.Wait()
	require.Empty(t, r.ConnectionsFor("u"))
}
