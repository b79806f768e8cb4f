package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PChat/module/chat/model"

	"github.com/pkg/errors"
)

// Rest 历史拉取与频道管理的 HTTP 协作方，实现 sync.HistoryFetcher。
type Rest struct {
	base  string
	token string
	http  *http.Client
}

func NewRest(serverURL, token string) *Rest {
	return &Rest{
		base:  strings.TrimSuffix(serverURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// DirectHistory 与 peer 的全部单聊历史，时间戳升序。
func (r *Rest) DirectHistory(ctx context.Context, peer string) ([]*model.Message, error) {
	var out struct {
		Messages []*model.Message `json:"messages"`
	}
	err := r.do(ctx, http.MethodPost, "/api/messages/direct", map[string]string{"id": peer}, &out)
	return out.Messages, err
}

// ChannelHistory 频道的全部历史，时间戳升序。
func (r *Rest) ChannelHistory(ctx context.Context, channelID string) ([]*model.Message, error) {
	var out struct {
		Messages []*model.Message `json:"messages"`
	}
	err := r.do(ctx, http.MethodGet, "/api/channel/"+url.PathEscape(channelID)+"/messages", nil, &out)
	return out.Messages, err
}

// Channels 当前用户参与的频道。
func (r *Rest) Channels(ctx context.Context) ([]*model.Channel, error) {
	var out struct {
		Channels []*model.Channel `json:"channels"`
	}
	err := r.do(ctx, http.MethodGet, "/api/channel/user", nil, &out)
	return out.Channels, err
}

// CreateChannel 建频道；创建者自动入成员集合。
func (r *Rest) CreateChannel(ctx context.Context, name string, members []string) (*model.Channel, error) {
	var out struct {
		Channel *model.Channel `json:"channel"`
	}
	body := map[string]any{"name": name, "members": members}
	err := r.do(ctx, http.MethodPost, "/api/channel", body, &out)
	return out.Channel, err
}

func (r *Rest) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: status=%d body=%s", method, path, resp.StatusCode, raw)
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
