package chat

import (
	"sync"

	"PChat/tools/errs"
)

// Registry 进程内连接注册表：用户 -> 当前存活连接集合。
// 这是服务端唯一跨协程共享的状态，读写都在锁内完成；
// 对外只暴露注册/注销/查询三件事。
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // user -> conn_id -> client
	byConn map[string]*Client            // conn_id -> client
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// Register 登记一条连接。未认证（UserID 为空）的连接拒绝登记，
// 调用方负责关闭传输。同一连接重复登记是幂等的。
func (r *Registry) Register(c *Client) error {
	if c == nil || c.UserID == "" {
		return errs.ErrUnauthenticated.WrapMsg("register requires an authenticated user")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[c.ID]; ok {
		return nil
	}
	m := r.byUser[c.UserID]
	if m == nil {
		m = make(map[string]*Client)
		r.byUser[c.UserID] = m
	}
	m[c.ID] = c
	r.byConn[c.ID] = c
	return nil
}

// Unregister 移除一条连接；不在表里时是 no-op。
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[c.ID]; !ok {
		return
	}
	delete(r.byConn, c.ID)
	if m := r.byUser[c.UserID]; m != nil {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
}

// ConnectionsFor 返回该用户当前存活连接的快照；没有连接返回空切片，不是错误。
func (r *Registry) ConnectionsFor(user string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[user]
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// CountFor 该用户的存活连接数（presence 上报用）。
func (r *Registry) CountFor(user string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user])
}

// Close 注销并关闭全部连接（进程退出时）。
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		clients = append(clients, c)
	}
	r.byUser = make(map[string]map[string]*Client)
	r.byConn = make(map[string]*Client)
	r.mu.Unlock()

	// 持锁期间不关 socket
	for _, c := range clients {
		c.Close()
	}
}
