package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/medipredict/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUsernameTaken 注册时用户名已存在
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound 会话中的用户不存在
	ErrUserNotFound = errors.New("user not found")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 6
	maxAge            = 120
)

// UserService 负责注册、凭证校验与资料维护
type UserService struct {
	db       *gorm.DB
	hashCost int
}

// ProfileInput 描述可更新的资料字段，Age 为 nil 表示清空
type ProfileInput struct {
	Age         *int
	Gender      string
	Email       string
	Phone       string
	DoctorName  string
	DoctorPhone string
}

// RegisterInput 为注册时提交的数据
type RegisterInput struct {
	Username string
	Password string
	Profile  ProfileInput
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb, hashCost: bcrypt.DefaultCost}
}

// WithHashCost 允许测试降低 bcrypt 成本
func (s *UserService) WithHashCost(cost int) *UserService {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
	return s
}

// Register 创建新用户，密码使用 bcrypt 哈希存储
func (s *UserService) Register(input RegisterInput) (*db.User, error) {
	username := strings.TrimSpace(input.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLength, maxUsernameLength)
	}
	if cleanText(username) != username {
		return nil, fmt.Errorf("%w: username contains markup", ErrValidation)
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if err := validateProfileInput(input.Profile); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{Username: username, Password: string(hashed)}
	applyProfile(&user, input.Profile)

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate 校验用户名与密码，失败统一返回 ErrInvalidCredentials
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 返回当前会话对应的用户
func (s *UserService) Get(sess Session) (*db.User, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	var user db.User
	if err := s.db.First(&user, sess.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 更新当前用户的资料字段，用户名与密码不可通过此接口修改
func (s *UserService) UpdateProfile(sess Session, input ProfileInput) (*db.User, error) {
	if err := validateProfileInput(input); err != nil {
		return nil, err
	}

	user, err := s.Get(sess)
	if err != nil {
		return nil, err
	}

	applyProfile(user, input)
	if err := s.db.Model(user).Select("age", "gender", "email", "phone", "doctor_name", "doctor_phone").Updates(user).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func applyProfile(user *db.User, input ProfileInput) {
	user.Age = input.Age
	user.Gender = cleanText(input.Gender)
	user.Email = cleanText(input.Email)
	user.Phone = cleanText(input.Phone)
	user.DoctorName = cleanText(input.DoctorName)
	user.DoctorPhone = cleanText(input.DoctorPhone)
}

func validateProfileInput(input ProfileInput) error {
	if input.Age != nil && (*input.Age < 0 || *input.Age > maxAge) {
		return fmt.Errorf("%w: age must be between 0 and %d", ErrValidation, maxAge)
	}
	if email := strings.TrimSpace(input.Email); email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return nil
}
