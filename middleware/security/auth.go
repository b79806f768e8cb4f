package security

import (
	"net/http"
	"strings"

	"PChat/tools/errs"
	sec "PChat/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用这个 key 读取已认证的用户ID
const CtxUserIDKey = "userId"

type Options struct {
	JWT sec.Options
	// 读取哪个请求头，默认 Authorization: Bearer xxx
	HeaderToken string
}

func DefaultOptions(jwt sec.Options) *Options {
	return &Options{JWT: jwt, HeaderToken: "Authorization"}
}

// Middleware 校验 Bearer 令牌并把用户ID写入 context；失败统一 401。
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if authz := strings.TrimSpace(c.GetHeader(opts.HeaderToken)); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthenticated)
			return
		}

		uid, err := sec.Parse(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}
		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

// UserID 从 context 取当前用户；只在 Middleware 之后的 handler 里用。
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
