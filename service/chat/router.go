package chat

import (
	"context"

	"PChat/logger"
	"PChat/module/chat/model"
)

// MessageStore 持久化协作方。身份与服务端时间戳由它分配。
type MessageStore interface {
	PersistMessage(ctx context.Context, in *model.MessageIntent) (*model.Message, error)
}

// MemberResolver 频道成员协作方。每次投递前都重新读取，
// 路由器内部不缓存成员集合（成员可能在两条消息之间变化）。
type MemberResolver interface {
	MembersOf(ctx context.Context, channelID string) ([]string, error)
}

// Router 消息路由器：校验 -> 落库 -> 解析目标连接集 -> 扇出。
// 投递决策只在这里做。落库失败不扇出；扇出失败不影响已落库的消息，
// 掉线方靠历史拉取补偿。
type Router struct {
	reg     *Registry
	store   MessageStore
	members MemberResolver
	fan     *Fanout
}

func NewRouter(reg *Registry, store MessageStore, members MemberResolver) *Router {
	r := &Router{
		reg:     reg,
		store:   store,
		members: members,
	}
	r.fan = NewFanout(4096, r.dropDead)
	return r
}

// dropDead 某条连接投不进去：按死连接处理，注销并关闭，其他目标不受影响。
func (r *Router) dropDead(c *Client) {
	logger.Warnf("[router] deliver failed, dropping conn=%s user=%s", c.ID, c.UserID)
	r.reg.Unregister(c)
	c.Close()
}

// Submit 处理一条发送意图。返回已落库的消息；校验或落库失败时无任何副作用。
// 零个在线目标不是错误——接收方下次历史拉取时补偿。
func (r *Router) Submit(ctx context.Context, in *model.MessageIntent) (*model.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	msg, err := r.store.PersistMessage(ctx, in)
	if err != nil {
		return nil, err
	}

	if msg.IsDirect() {
		r.deliverDirect(msg)
	} else {
		r.deliverChannel(ctx, msg)
	}
	return msg, nil
}

// deliverDirect 单聊只投对端的在线连接；发送方本地乐观渲染，不回显。
func (r *Router) deliverDirect(msg *model.Message) {
	targets := r.reg.ConnectionsFor(msg.Recipient)
	if len(targets) == 0 {
		return
	}
	payload, err := EncodeFrame(EventDeliverDirect, msg)
	if err != nil {
		logger.Errorf("[router] encode deliver frame msg=%s err=%v", msg.ID, err)
		return
	}
	r.fan.Broadcast(targets, payload)
}

// deliverChannel 频道消息投所有当前成员的在线连接，发送方自己的连接也在内
// （多端同步看到自己的发送；客户端按消息ID去重）。
func (r *Router) deliverChannel(ctx context.Context, msg *model.Message) {
	members, err := r.members.MembersOf(ctx, msg.ChannelID)
	if err != nil {
		// 已落库：在线投递退化为离线路径，靠历史拉取补偿
		logger.Warnf("[router] resolve members failed channel=%s msg=%s err=%v", msg.ChannelID, msg.ID, err)
		return
	}
	if len(members) == 0 {
		return
	}

	var targets []*Client
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		if _, ok := seen[member]; ok {
			continue
		}
		seen[member] = struct{}{}
		targets = append(targets, r.reg.ConnectionsFor(member)...)
	}
	if len(targets) == 0 {
		return
	}

	payload, err := EncodeFrame(EventDeliverChannel, msg)
	if err != nil {
		logger.Errorf("[router] encode deliver frame msg=%s err=%v", msg.ID, err)
		return
	}
	r.fan.Broadcast(targets, payload)
}

// Close 停止投递阶段（进程退出时）。
func (r *Router) Close() {
	r.fan.Close()
}
