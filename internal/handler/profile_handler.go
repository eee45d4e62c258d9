package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/service"
)

type profileRequest struct {
	Age         *int   `json:"age"`
	Gender      string `json:"gender"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DoctorName  string `json:"doctor_name"`
	DoctorPhone string `json:"doctor_phone"`
}

type userPayload struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Age         *int      `json:"age"`
	Gender      string    `json:"gender"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DoctorName  string    `json:"doctor_name"`
	DoctorPhone string    `json:"doctor_phone"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r profileRequest) toInput() service.ProfileInput {
	return service.ProfileInput{
		Age:         r.Age,
		Gender:      r.Gender,
		Email:       r.Email,
		Phone:       r.Phone,
		DoctorName:  r.DoctorName,
		DoctorPhone: r.DoctorPhone,
	}
}

// userToPayload 不包含密码哈希
func userToPayload(user db.User) userPayload {
	return userPayload{
		ID:          user.ID,
		Username:    user.Username,
		Age:         user.Age,
		Gender:      user.Gender,
		Email:       user.Email,
		Phone:       user.Phone,
		DoctorName:  user.DoctorName,
		DoctorPhone: user.DoctorPhone,
		CreatedAt:   user.CreatedAt,
	}
}

// GetProfile 返回当前用户资料
func (a *API) GetProfile(c *gin.Context) {
	user, err := a.users.Get(sessionFrom(c))
	if err != nil {
		a.handleServiceError(c, err, "获取资料失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}

// UpdateProfile 更新当前用户资料
func (a *API) UpdateProfile(c *gin.Context) {
	var payload profileRequest
	if !bindJSON(c, &payload, "请检查资料格式") {
		return
	}

	user, err := a.users.UpdateProfile(sessionFrom(c), payload.toInput())
	if err != nil {
		a.handleServiceError(c, err, "更新资料失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userToPayload(*user)})
}
