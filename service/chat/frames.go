package chat

import (
	"encoding/json"
	stderrors "errors"

	"PChat/tools/errs"
)

// 实时事件名。提交方向 client->server，投递方向 server->client。
const (
	EventSubmitDirect   = "submit-direct-message"
	EventSubmitChannel  = "submit-channel-message"
	EventDeliverDirect  = "deliver-direct-message"
	EventDeliverChannel = "deliver-channel-message"
	EventError          = "error"
)

// Frame 统一信封：{"event": "...", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errs.New("frame missing event")
	}
	return &f, nil
}

func EncodeFrame(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal frame data", "event", event)
	}
	return json.Marshal(&Frame{Event: event, Data: data})
}

// ErrorPayload error 帧负载，只回给提交失败的那条连接。
type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// BuildErrorFrame 把业务错误转成 error 帧。
// 非 CodeError 一律按存储错误上报，不往客户端漏内部细节。
func BuildErrorFrame(err error) []byte {
	payload := ErrorPayload{Code: errs.ErrPersistence.Code, Msg: errs.ErrPersistence.Msg}
	var ce *errs.CodeError
	if stderrors.As(err, &ce) {
		payload = ErrorPayload{Code: ce.Code, Msg: ce.Msg}
	}
	raw, _ := EncodeFrame(EventError, payload)
	return raw
}
