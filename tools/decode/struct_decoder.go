package decode

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码（默认 true）：例如 "123" -> int、1.0 -> int64。
	// 环境变量覆盖配置时全是字符串，靠它转成目标类型。
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// DecodeMap 将 map[string]any 动态解码到任意结构体 T。
// 字段读取使用 `json` tag，配置与帧负载共用一套标签。
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
	}
	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, errors.Wrap(err, "new decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(err, "decode map")
	}
	return &out, nil
}
