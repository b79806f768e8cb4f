package errs

// 错误码分段：10xx 提交侧，11xx 连接侧。
// 提交侧错误会以 error 帧回给发送方；连接侧错误只做日志与清理。
var (
	ErrValidation      = NewCodeError(1001, "invalid message intent")
	ErrPersistence     = NewCodeError(1002, "message store unavailable")
	ErrUnauthenticated = NewCodeError(1101, "unauthenticated connection")
	ErrDelivery        = NewCodeError(1102, "deliver to connection failed")
	ErrTokenExpired    = NewCodeError(1103, "token invalid or expired")
)
