package chat

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"PChat/logger"
	"PChat/module/chat/model"
	online "PChat/service/storage"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const presenceTTL = 2 * time.Minute

// WsServer 实时网关：认证、升级、注册、读循环分发。
type WsServer struct {
	reg    *Registry
	router *Router
	auth   Authenticator

	// presence 上报失败只降级不阻断（redis 不可用时网关照常工作）
	presenceOn bool
}

func NewWsServer(reg *Registry, router *Router, auth Authenticator, presenceOn bool) *WsServer {
	return &WsServer{reg: reg, router: router, auth: auth, presenceOn: presenceOn}
}

// HandleWS gin 路由入口。先认证再升级：匿名连接直接 401，不允许裸连。
func (s *WsServer) HandleWS(c *gin.Context) {
	userID, err := s.auth.Authenticate(c.Request)
	if err != nil {
		logger.Warnf("[ws] refuse unauthenticated connect remote=%s err=%v", c.ClientIP(), err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthenticated)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 非 WebSocket 请求/握手失败
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(userID, ws)
	if err := s.reg.Register(client); err != nil {
		logger.Warnf("[ws] register refused user=%s err=%v", userID, err)
		client.Close()
		return
	}
	if s.presenceOn {
		if _, err := online.PresenceOnline(userID, presenceTTL); err != nil {
			logger.Warnf("[ws] presence online failed user=%s err=%v", userID, err)
		}
	}
	logger.Infof("[ws] connected user=%s conn=%s remote=%s", userID, client.ID, c.ClientIP())

	go client.WritePump()
	s.readLoop(client, ws)

	// ---- 退出阶段：注销、下线、关闭 ----
	s.reg.Unregister(client)
	if s.presenceOn {
		if err := online.PresenceOffline(userID); err != nil {
			logger.Warnf("[ws] presence offline failed user=%s err=%v", userID, err)
		}
	}
	client.Close()
	logger.Infof("[ws] disconnected user=%s conn=%s", userID, client.ID)
}

// readLoop 只读不写；出错即退出，写协程随 done 收尾。
func (s *WsServer) readLoop(client *Client, ws *websocket.Conn) {
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", client.ID)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[ws] bad frame conn=%s err=%v sample=%q", client.ID, perr, sample)
			continue
		}

		switch frame.Event {
		case EventSubmitDirect, EventSubmitChannel:
			s.handleSubmit(client, frame)
		default:
			logger.Infof("[ws] no handler for event=%s conn=%s", frame.Event, client.ID)
		}
	}
}

// handleSubmit 解析意图并走路由器。校验/落库失败只回给提交方一个 error 帧，
// 投递侧的失败对发送方不可见。
func (s *WsServer) handleSubmit(client *Client, frame *Frame) {
	var in model.MessageIntent
	if err := json.Unmarshal(frame.Data, &in); err != nil {
		s.pushError(client, errs.ErrValidation.WrapMsg("malformed intent payload"))
		return
	}
	// 发送方身份以连接认证结果为准，不信任负载里的 sender
	in.Sender = client.UserID

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.router.Submit(ctx, &in); err != nil {
		logger.Infof("[ws] submit rejected user=%s event=%s err=%v", client.UserID, frame.Event, err)
		s.pushError(client, err)
	}
}

func (s *WsServer) pushError(client *Client, err error) {
	select {
	case client.Send <- BuildErrorFrame(err):
	default:
		logger.Warnf("[ws] send queue full, drop error frame conn=%s", client.ID)
	}
}
