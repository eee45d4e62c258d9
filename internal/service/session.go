package service

import "errors"

var (
	// ErrUnauthenticated 表示会话未登录或已失效
	ErrUnauthenticated = errors.New("session is not authenticated")
	// ErrValidation 表示输入格式错误或跨用户引用不一致
	ErrValidation = errors.New("validation failed")
)

// Session 是显式的会话上下文，由 handler 从 cookie 会话中构造并传入每个操作，
// 服务层不读取任何全局登录状态。
type Session struct {
	UserID        uint
	Username      string
	Authenticated bool
}

// NewSession 构造已登录的会话
func NewSession(userID uint, username string) Session {
	return Session{UserID: userID, Username: username, Authenticated: userID != 0}
}

func (s Session) require() error {
	if !s.Authenticated || s.UserID == 0 {
		return ErrUnauthenticated
	}
	return nil
}
