package chat

import (
	"net/http"
	"strings"

	"PChat/tools/errs"
	"PChat/tools/security"
)

// Authenticator 握手期的身份协作方。实时连接必须带着已认证的用户身份进来，
// 拿不到身份就拒绝升级。
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// JWTAuthenticator 从 token 查询参数或 Authorization: Bearer 头取令牌。
type JWTAuthenticator struct {
	Opts security.Options
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if token == "" {
		return "", errs.ErrUnauthenticated.WrapMsg("missing token")
	}
	uid, err := security.Parse(a.Opts, token)
	if err != nil {
		return "", errs.ErrTokenExpired.WrapMsg("parse token", "err", err)
	}
	return uid, nil
}

// StaticAuthenticator token -> userID 的固定映射，开发与联调用。
type StaticAuthenticator map[string]string

func (a StaticAuthenticator) Authenticate(r *http.Request) (string, error) {
	uid, ok := a[r.URL.Query().Get("token")]
	if !ok {
		return "", errs.ErrUnauthenticated.Wrap()
	}
	return uid, nil
}
