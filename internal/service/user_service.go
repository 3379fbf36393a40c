package service

import (
	"errors"
	"strings"

	"github.com/unicms/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserService manages back office accounts.
type UserService struct {
	db *gorm.DB
}

// UserInput carries fields accepted when creating or updating a user.
// Nil fields are left untouched on update.
type UserInput struct {
	Name     *string
	Email    *string
	Username *string
	Password *string
	Role     *string
}

// NewUserService creates a UserService instance.
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// List returns all users with their role and direct permission sets.
func (s *UserService) List() ([]db.User, error) {
	var users []db.User
	if err := s.db.Preload("Roles").Preload("Permissions").Order("username asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get fetches a user with the access graph preloaded.
func (s *UserService) Get(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.Preload("Roles.Permissions").Preload("Permissions").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate resolves a username/password pair to a user, or fails
// with ErrInvalidCredentials without revealing which half was wrong.
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Create inserts a new account with a bcrypt hashed credential. The
// legacy role flag defaults to "user".
func (s *UserService) Create(input UserInput) (*db.User, error) {
	if input.Username == nil || strings.TrimSpace(*input.Username) == "" {
		return nil, errors.New("username is required")
	}
	if input.Password == nil || *input.Password == "" {
		return nil, errors.New("password is required")
	}

	username := strings.TrimSpace(*input.Username)
	if taken, err := s.usernameTaken(username, 0); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameExists
	}

	user := db.User{Username: username, Role: db.RoleUser}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if taken, err := s.emailTaken(email, 0); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrEmailExists
		}
		user.Email = email
	}
	if input.Role != nil && *input.Role == db.RoleAdmin {
		user.Role = db.RoleAdmin
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user.Password = string(hashed)

	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a sparse update; a provided password is re-hashed.
func (s *UserService) Update(id uint, input UserInput) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, errors.New("username is required")
		}
		if taken, err := s.usernameTaken(username, id); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrUsernameExists
		}
		user.Username = username
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if taken, err := s.emailTaken(email, id); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrEmailExists
		}
		user.Email = email
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Role != nil {
		if *input.Role == db.RoleAdmin {
			user.Role = db.RoleAdmin
		} else {
			user.Role = db.RoleUser
		}
	}
	if input.Password != nil && *input.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hashed)
	}

	if err := s.db.Save(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes an account after detaching its role and permission
// join rows.
func (s *UserService) Delete(id uint) error {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&user).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&user).Error
	})
}

func (s *UserService) usernameTaken(username string, excludeID uint) (bool, error) {
	var count int64
	query := s.db.Model(&db.User{}).Where("username = ?", username)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UserService) emailTaken(email string, excludeID uint) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int64
	query := s.db.Model(&db.User{}).Where("email = ?", email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
