package sync

import (
	"context"
	"strconv"
	"time"

	"PChat/module/chat/model"

	"github.com/golang/glog"
)

// HistoryFetcher 持久化协作方：切换会话时拉取该会话的全量历史（时间戳升序）。
type HistoryFetcher interface {
	DirectHistory(ctx context.Context, peer string) ([]*model.Message, error)
	ChannelHistory(ctx context.Context, channelID string) ([]*model.Message, error)
}

// ===== 事件 =====
// 入站 socket 帧、用户动作、异步拉取结果都收敛成类型化事件，
// 排进同一条队列由引擎协程顺序消化——"切换清屏"和"实时追加"不会交错。

type event interface{ isEvent() }

type evDirect struct{ msg *model.Message }
type evChannel struct{ msg *model.Message }
type evEcho struct{ in *model.MessageIntent }
type evSelect struct{ sel Selection }
type evHistory struct {
	seq  uint64
	sel  Selection
	msgs []*model.Message
	err  error
}

func (evDirect) isEvent()  {}
func (evChannel) isEvent() {}
func (evEcho) isEvent()    {}
func (evSelect) isEvent()  {}
func (evHistory) isEvent() {}

const fetchTimeout = 10 * time.Second

// Engine 客户端同步引擎。单协程消化事件队列；
// 历史拉取在工作协程里做，完成结果再排回队列。
type Engine struct {
	self    string
	fetcher HistoryFetcher

	events chan event
	st     *State

	// 历史拉取的新鲜度闸门：每次切换会话自增；
	// 迟到的拉取结果序号对不上就静默丢弃。
	fetchSeq uint64
	awaiting bool
	pending  []*model.Message // 拉取未返回期间到达的本会话实时消息

	localSeq int64 // 乐观回显的临时ID

	onChange func(st *State) // 每处理完一个事件回调一次（引擎协程内，只读）
}

func NewEngine(self string, fetcher HistoryFetcher, onChange func(*State)) *Engine {
	return &Engine{
		self:     self,
		fetcher:  fetcher,
		events:   make(chan event, 128),
		st:       NewState(),
		onChange: onChange,
	}
}

// Run 事件循环，阻塞到 ctx 取消。
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.step(ev)
			if e.onChange != nil {
				e.onChange(e.st)
			}
		}
	}
}

// ===== 入队 API（任意协程可调）=====

// HandleDirect 入站单聊投递事件。
func (e *Engine) HandleDirect(m *model.Message) { e.events <- evDirect{msg: m} }

// HandleChannel 入站频道投递事件。
func (e *Engine) HandleChannel(m *model.Message) { e.events <- evChannel{msg: m} }

// Select 切换当前会话。
func (e *Engine) Select(sel Selection) { e.events <- evSelect{sel: sel} }

// Echo 乐观回显自己刚发出的单聊消息：服务端不回显对侧以外的投递，
// 本地直接补一条临时记录，切换会话重拉历史后被持久化副本取代。
func (e *Engine) Echo(in *model.MessageIntent) { e.events <- evEcho{in: in} }

// ===== 事件处理（引擎协程）=====

func (e *Engine) step(ev event) {
	switch ev := ev.(type) {
	case evDirect:
		promoteContact(e.st, e.self, ev.msg)
		e.appendIfOpen(ev.msg)

	case evChannel:
		promoteChannel(e.st, ev.msg)
		e.appendIfOpen(ev.msg)

	case evEcho:
		e.localSeq++
		msg := &model.Message{
			ID:        "local-" + strconv.FormatInt(e.localSeq, 10),
			Sender:    ev.in.Sender,
			Recipient: ev.in.Recipient,
			ChannelID: ev.in.ChannelID,
			Type:      ev.in.Type,
			Content:   ev.in.Content,
			FileURL:   ev.in.FileURL,
			VoiceURL:  ev.in.VoiceURL,
			Timestamp: time.Now().UnixMilli(),
		}
		if msg.IsDirect() {
			promoteContact(e.st, e.self, msg)
		} else {
			promoteChannel(e.st, msg)
		}
		e.appendIfOpen(msg)

	case evSelect:
		applySelect(e.st, ev.sel)
		e.fetchSeq++
		e.pending = nil
		if ev.sel.IsNone() {
			e.awaiting = false
			return
		}
		e.awaiting = true
		go e.fetch(e.fetchSeq, ev.sel)

	case evHistory:
		if ev.seq != e.fetchSeq {
			// 用户已经切走，迟到的结果直接丢，不是错误
			glog.V(2).Infof("discard stale history fetch seq=%d current=%d", ev.seq, e.fetchSeq)
			return
		}
		e.awaiting = false
		if ev.err != nil {
			glog.Errorf("history fetch failed sel=%v err=%v", ev.sel, ev.err)
		}
		for _, m := range ev.msgs {
			appendTranscript(e.st, m)
		}
		// 拉取期间攒下的实时消息排在历史之后，ID 去重兜底重叠
		for _, m := range e.pending {
			appendTranscript(e.st, m)
		}
		e.pending = nil
	}
}

// appendIfOpen 只有当前打开的会话才进转写区；拉取未返回时先攒着，
// 保证转写区永远是"持久化历史 + 其后实时事件"的前缀一致合并。
func (e *Engine) appendIfOpen(m *model.Message) {
	if !matchesSelection(e.st, m) {
		return
	}
	if e.awaiting {
		e.pending = append(e.pending, m)
		return
	}
	appendTranscript(e.st, m)
}

func (e *Engine) fetch(seq uint64, sel Selection) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var (
		msgs []*model.Message
		err  error
	)
	switch sel.Kind {
	case KindContact:
		msgs, err = e.fetcher.DirectHistory(ctx, sel.ID)
	case KindChannel:
		msgs, err = e.fetcher.ChannelHistory(ctx, sel.ID)
	}
	e.events <- evHistory{seq: seq, sel: sel, msgs: msgs, err: err}
}
