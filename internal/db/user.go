package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Legacy values of the coarse User.Role flag. The flag is maintained
// independently of the granular role/permission graph; "admin" here is a
// full bypass of every permission check.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 定义了用户模型
type User struct {
	gorm.Model
	Name        string       `json:"name"`
	Email       string       `gorm:"uniqueIndex" json:"email"`
	Username    string       `gorm:"uniqueIndex;not null" json:"username"`
	Password    string       `gorm:"not null" json:"-"`
	Role        string       `gorm:"default:user" json:"role"`
	Roles       []Role       `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	Permissions []Permission `gorm:"many2many:user_permissions;" json:"permissions,omitempty"`
	Posts       []Post       `json:"-"`
}

// EnsureAdmin 存在性检查：若提供的用户名与密码均非空且不存在对应账号，
// 则创建一个 bcrypt 哈希、legacy role 为 admin 的引导账号。
func EnsureAdmin(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			Username: trimmedUser,
			Name:     trimmedUser,
			Email:    trimmedUser + "@localhost",
			Password: string(hashed),
			Role:     RoleAdmin,
		}).Error
	}

	return nil
}
