package model

import (
	"PChat/tools/errs"
)

// ===== 常量 =====

const (
	MsgTableName = "messages" // 集合名
)

// MessageType 消息类型（text/file/voice 三选一）
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageVoice MessageType = "voice"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageVoice:
		return true
	}
	return false
}

// ===== 存储结构 =====

// Message 一条已落库的消息。ID/Timestamp 由存储层分配，
// Recipient 与 ChannelID 恰好只有一个非空（单聊/频道二选一）。
type Message struct {
	ID        string      `bson:"_id" json:"id"`
	Sender    string      `bson:"sender" json:"sender"`
	Recipient string      `bson:"recipient,omitempty" json:"recipient,omitempty"`
	ChannelID string      `bson:"channel_id,omitempty" json:"channelId,omitempty"`
	Type      MessageType `bson:"message_type" json:"messageType"`

	// 负载三选一，与 Type 对应
	Content  string `bson:"content,omitempty" json:"content,omitempty"`
	FileURL  string `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	VoiceURL string `bson:"voice_url,omitempty" json:"voiceUrl,omitempty"`

	Timestamp int64 `bson:"time_stamp" json:"timeStamp"` // Unix ms，服务端分配
}

func (*Message) TableName() string { return MsgTableName }

func (m *Message) IsDirect() bool { return m.ChannelID == "" }

// PeerOf 返回单聊会话中 self 的对端。
func (m *Message) PeerOf(self string) string {
	if m.Sender == self {
		return m.Recipient
	}
	return m.Sender
}

// Preview 摘要文本，用于会话列表预览。
func (m *Message) Preview() string {
	switch m.Type {
	case MessageFile:
		return "[file]"
	case MessageVoice:
		return "[voice]"
	default:
		return m.Content
	}
}

// ===== 提交意图 =====

// MessageIntent 客户端提交的发送意图，落库前必须先 Validate。
type MessageIntent struct {
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient,omitempty"`
	ChannelID string      `json:"channelId,omitempty"`
	Type      MessageType `json:"messageType"`
	Content   string      `json:"content,omitempty"`
	FileURL   string      `json:"fileUrl,omitempty"`
	VoiceURL  string      `json:"voiceUrl,omitempty"`
}

func (in *MessageIntent) IsDirect() bool { return in.ChannelID == "" }

// Validate 校验提交不变式：目标二选一、类型合法、负载与类型一致且三选一。
// 不合法的意图不会产生任何副作用。
func (in *MessageIntent) Validate() error {
	if in.Sender == "" {
		return errs.ErrValidation.WrapMsg("sender is required")
	}
	if (in.Recipient == "") == (in.ChannelID == "") {
		return errs.ErrValidation.WrapMsg("exactly one of recipient/channelId must be set")
	}
	if !in.Type.Valid() {
		return errs.ErrValidation.WrapMsg("unknown messageType", "messageType", string(in.Type))
	}

	populated := 0
	for _, v := range []string{in.Content, in.FileURL, in.VoiceURL} {
		if v != "" {
			populated++
		}
	}
	if populated != 1 {
		return errs.ErrValidation.WrapMsg("exactly one payload field must be set")
	}

	switch in.Type {
	case MessageText:
		if in.Content == "" {
			return errs.ErrValidation.WrapMsg("content is required for text messages")
		}
	case MessageFile:
		if in.FileURL == "" {
			return errs.ErrValidation.WrapMsg("fileUrl is required for file messages")
		}
	case MessageVoice:
		if in.VoiceURL == "" {
			return errs.ErrValidation.WrapMsg("voiceUrl is required for voice messages")
		}
	}
	return nil
}
