package sync

import (
	"PChat/module/chat/model"
)

// Kind 当前打开的会话类型。
type Kind int

const (
	KindNone Kind = iota
	KindContact
	KindChannel
)

// Selection 当前打开的会话（仅客户端态，不落任何存储）。
type Selection struct {
	Kind Kind
	ID   string // contact 用户ID 或 channel ID
}

func (s Selection) IsNone() bool { return s.Kind == KindNone }

// SummaryEntry 会话列表条目：最近活动指针 + 预览。
// 不管当前打开的是哪个会话，每条入站消息都会刷新对应条目。
type SummaryEntry struct {
	ID      string
	Name    string
	Preview string
	LastAt  int64 // Unix ms，取自消息时间戳
}

// State 同步引擎的全部客户端状态。只有引擎协程会改它；
// 状态迁移都是下面这些显式函数，不读任何全局量。
type State struct {
	Selection  Selection
	Transcript []*model.Message
	Contacts   []SummaryEntry // 最近活动在前
	Channels   []SummaryEntry

	seen map[string]struct{} // 消息ID去重（历史拉取与实时事件可能重复投递）
}

func NewState() *State {
	return &State{seen: make(map[string]struct{})}
}

// ===== 状态迁移 =====

// applySelect 切换会话：清空转写区与去重集。历史拉取由引擎发起。
func applySelect(st *State, sel Selection) {
	st.Selection = sel
	st.Transcript = nil
	st.seen = make(map[string]struct{})
}

// appendTranscript 幂等追加：同一消息ID只进一次，重复投递是 no-op。
func appendTranscript(st *State, m *model.Message) bool {
	if m.ID != "" {
		if _, dup := st.seen[m.ID]; dup {
			return false
		}
		st.seen[m.ID] = struct{}{}
	}
	st.Transcript = append(st.Transcript, m)
	return true
}

// matchesSelection 该消息是否属于当前打开的会话。
// 单聊两端都算：收到别人发来的，或自己另一端的回显。
func matchesSelection(st *State, m *model.Message) bool {
	switch st.Selection.Kind {
	case KindContact:
		return m.IsDirect() && (st.Selection.ID == m.Sender || st.Selection.ID == m.Recipient)
	case KindChannel:
		return !m.IsDirect() && st.Selection.ID == m.ChannelID
	}
	return false
}

// promoteContact 单聊会话列表：涉及的对端移到最前并刷新预览。
func promoteContact(st *State, self string, m *model.Message) {
	peer := m.PeerOf(self)
	st.Contacts = promote(st.Contacts, peer, m)
}

// promoteChannel 频道会话列表同理。
func promoteChannel(st *State, m *model.Message) {
	st.Channels = promote(st.Channels, m.ChannelID, m)
}

func promote(list []SummaryEntry, id string, m *model.Message) []SummaryEntry {
	entry := SummaryEntry{ID: id, Preview: m.Preview(), LastAt: m.Timestamp}
	for i, e := range list {
		if e.ID == id {
			entry.Name = e.Name // 名称来自频道列表拉取，消息里没有
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	return append([]SummaryEntry{entry}, list...)
}
