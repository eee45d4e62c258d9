package handler

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/service"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	maxTrackedClients  = 10000
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	profileRequest
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginLimiter 按客户端 IP 限制登录尝试频率
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLoginLimiter(perMinute, burst int) *loginLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &loginLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
	}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	return limiter.Allow()
}

// sessionFrom 从 cookie 会话构造服务层使用的 Session
func sessionFrom(c *gin.Context) service.Session {
	session := sessions.Default(c)
	userID, _ := session.Get(sessionUserIDKey).(uint)
	username, _ := session.Get(sessionUsernameKey).(string)
	if userID == 0 {
		return service.Session{}
	}
	return service.NewSession(userID, username)
}

// Register 创建账号
func (a *API) Register(c *gin.Context) {
	var payload registerRequest
	if !bindJSON(c, &payload, "请填写用户名和密码") {
		return
	}

	user, err := a.users.Register(service.RegisterInput{
		Username: payload.Username,
		Password: payload.Password,
		Profile:  payload.profileRequest.toInput(),
	})
	if err != nil {
		a.handleServiceError(c, err, "注册失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": userToPayload(*user)})
}

// Login 校验凭证并写入会话
func (a *API) Login(c *gin.Context) {
	if !a.limiter.allow(c.ClientIP()) {
		a.metrics.RecordLoginBlocked()
		respondError(c, http.StatusTooManyRequests, "登录尝试过于频繁，请稍后再试")
		return
	}

	var payload loginRequest
	if !bindJSON(c, &payload, "请填写用户名和密码") {
		return
	}
	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		respondError(c, http.StatusBadRequest, "请填写用户名和密码")
		return
	}

	user, err := a.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		a.handleServiceError(c, err, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		a.logger.Error("save session", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		a.logger.Warn("clear session", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AuthRequired 拦截未登录请求
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionFrom(c).Authenticated {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}
