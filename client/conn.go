package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	gosync "sync"
	"time"

	"PChat/client/sync"
	"PChat/module/chat/model"
	"PChat/service/chat"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second
	readWait  = 60 * time.Second
)

// Conn 到网关的实时连接。入站投递帧转成类型化事件交给同步引擎，
// 出站提交帧走单写协程。
type Conn struct {
	ws     *websocket.Conn
	engine *sync.Engine

	send      chan []byte
	done      chan struct{}
	closeOnce gosync.Once
}

// Dial 建立已认证的实时连接。serverURL 形如 http://host:port，
// token 随握手带上；服务端拒绝匿名连接。
func Dial(ctx context.Context, serverURL, token string, engine *sync.Engine) (*Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", u.Host)
	}

	c := &Conn{
		ws:     ws,
		engine: engine,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) Done() <-chan struct{} { return c.done }

// SendDirect 提交单聊意图；投递失败由服务端 error 帧报告。
func (c *Conn) SendDirect(in *model.MessageIntent) error {
	return c.submit(chat.EventSubmitDirect, in)
}

// SendChannel 提交频道意图。
func (c *Conn) SendChannel(in *model.MessageIntent) error {
	return c.submit(chat.EventSubmitChannel, in)
}

func (c *Conn) submit(event string, in *model.MessageIntent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	raw, err := chat.EncodeFrame(event, in)
	if err != nil {
		return err
	}
	select {
	case c.send <- raw:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	}
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				glog.Errorf("read: %v", err)
			}
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Conn) handleFrame(raw []byte) {
	frame, err := chat.ParseFrame(raw)
	if err != nil {
		glog.Warningf("bad frame from server: %v", err)
		return
	}

	switch frame.Event {
	case chat.EventDeliverDirect, chat.EventDeliverChannel:
		var m model.Message
		if err := json.Unmarshal(frame.Data, &m); err != nil {
			glog.Warningf("bad deliver payload: %v", err)
			return
		}
		if frame.Event == chat.EventDeliverDirect {
			c.engine.HandleDirect(&m)
		} else {
			c.engine.HandleChannel(&m)
		}

	case chat.EventError:
		var p chat.ErrorPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			glog.Warningf("bad error payload: %v", err)
			return
		}
		// 提交被拒：消息没有发出去，给用户看得到的失败
		glog.Errorf("server rejected submit: code=%d msg=%s", p.Code, p.Msg)

	default:
		glog.V(2).Infof("ignore event %q", frame.Event)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case raw := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				glog.Errorf("write: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
