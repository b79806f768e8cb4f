package chat

import (
	"sync"
	"time"

	"PChat/logger"
	"PChat/tools/ids"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 256
	writeWait     = 5 * time.Second
	pingEvery     = 25 * time.Second
)

// Client 一条已认证的实时连接。
// Send 是该连接唯一的出站队列；gorilla 的写端不允许并发，
// 所有写操作都走 WritePump 这一个协程。
type Client struct {
	ID     string // 连接ID（雪花）
	UserID string

	Send chan []byte

	conn      *websocket.Conn
	createdAt time.Time
	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(userID string, ws *websocket.Conn) *Client {
	return &Client{
		ID:        ids.NextString(),
		UserID:    userID,
		Send:      make(chan []byte, sendQueueSize),
		conn:      ws,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Close 幂等关闭；读写两侧都以 done 为准收尾。
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} { return c.done }

// WritePump 单写协程：消费 Send 队列并定期 ping。
// 写失败直接关连接，读循环随之退出并走注销流程。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warnf("[ws] write failed conn=%s user=%s err=%v", c.ID, c.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
