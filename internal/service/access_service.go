package service

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/unicms/internal/db"
	"gorm.io/gorm"
)

var (
	ErrRoleExists         = errors.New("role already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionExists   = errors.New("permission already exists")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrUserNotFound       = errors.New("user not found")
)

// AccessService resolves effective authorization and manages the
// role/permission graph. The legacy User.Role flag and the graph are
// maintained independently; either one can grant access.
type AccessService struct {
	db *gorm.DB
}

// RoleInput carries fields for creating or updating a role. A nil
// PermissionIDs leaves the association set untouched on update.
type RoleInput struct {
	Name          string
	Description   *string
	PermissionIDs *[]uint
}

// PermissionInput mirrors RoleInput for the permission side.
type PermissionInput struct {
	Name        string
	Description *string
	RoleIDs     *[]uint
}

// PermissionInfo is a permission plus the read-only count of users
// holding it as a direct grant.
type PermissionInfo struct {
	db.Permission
	UserCount int64 `json:"userCount"`
}

// NewAccessService creates an AccessService instance.
func NewAccessService(gdb *gorm.DB) *AccessService {
	return &AccessService{db: gdb}
}

// IsAdmin is the coarse legacy gate: true only for role == "admin".
func (s *AccessService) IsAdmin(user *db.User) bool {
	return user != nil && user.Role == db.RoleAdmin
}

// HasPermission reports whether the user may perform the named action:
// the legacy admin flag is a full bypass, otherwise the permission must
// appear in the union of role-attached permissions and direct grants.
// Computed freshly per call; an empty graph simply yields false.
func (s *AccessService) HasPermission(user *db.User, name string) (bool, error) {
	if s.IsAdmin(user) {
		return true, nil
	}
	if user == nil || user.ID == 0 {
		return false, nil
	}

	var count int64
	err := s.db.Table("permissions").
		Joins("LEFT JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("LEFT JOIN user_roles ON user_roles.role_id = role_permissions.role_id AND user_roles.user_id = ?", user.ID).
		Joins("LEFT JOIN user_permissions ON user_permissions.permission_id = permissions.id AND user_permissions.user_id = ?", user.ID).
		Where("permissions.name = ?", name).
		Where("user_roles.user_id IS NOT NULL OR user_permissions.user_id IS NOT NULL").
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListRoles returns all roles with their permission sets.
func (s *AccessService) ListRoles() ([]db.Role, error) {
	var roles []db.Role
	if err := s.db.Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole inserts a role and associates its permission set
// atomically: either the role and all its join rows exist, or nothing.
func (s *AccessService) CreateRole(input RoleInput) (*db.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("role name is required")
	}

	var count int64
	if err := s.db.Model(&db.Role{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrRoleExists
	}

	role := db.Role{Name: name}
	if input.Description != nil {
		role.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		if input.PermissionIDs != nil {
			return s.replaceRolePermissions(tx, &role, *input.PermissionIDs)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.getRole(role.ID)
}

// UpdateRole renames a role and, when a permission set is provided,
// fully replaces the association set.
func (s *AccessService) UpdateRole(id uint, input RoleInput) (*db.Role, error) {
	var role db.Role
	if err := s.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != role.Name {
		var count int64
		if err := s.db.Model(&db.Role{}).
			Where("name = ? AND id <> ?", name, id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrRoleExists
		}
		role.Name = name
	}
	if input.Description != nil {
		role.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&role).Error; err != nil {
			return err
		}
		if input.PermissionIDs != nil {
			return s.replaceRolePermissions(tx, &role, *input.PermissionIDs)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.getRole(role.ID)
}

// DeleteRole detaches the role from all users and permissions before
// removing the role row, leaving no orphaned join rows.
func (s *AccessService) DeleteRole(id uint) error {
	var role db.Role
	if err := s.db.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&role).Association("Users").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&role).Error
	})
}

// ListPermissions returns all permissions with their roles and the
// count of direct user grants.
func (s *AccessService) ListPermissions() ([]PermissionInfo, error) {
	var permissions []db.Permission
	if err := s.db.Preload("Roles").Order("name asc").Find(&permissions).Error; err != nil {
		return nil, err
	}

	type grantRow struct {
		PermissionID uint
		Count        int64
	}
	var rows []grantRow
	if err := s.db.Table("user_permissions").
		Select("permission_id, COUNT(user_id) AS count").
		Group("permission_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[uint]int64{}
	for _, row := range rows {
		counts[row.PermissionID] = row.Count
	}

	return lo.Map(permissions, func(p db.Permission, _ int) PermissionInfo {
		return PermissionInfo{Permission: p, UserCount: counts[p.ID]}
	}), nil
}

// CreatePermission inserts a permission, optionally attaching roles.
func (s *AccessService) CreatePermission(input PermissionInput) (*db.Permission, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("permission name is required")
	}

	var count int64
	if err := s.db.Model(&db.Permission{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrPermissionExists
	}

	permission := db.Permission{Name: name}
	if input.Description != nil {
		permission.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&permission).Error; err != nil {
			return err
		}
		if input.RoleIDs != nil {
			return s.replacePermissionRoles(tx, &permission, *input.RoleIDs)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.getPermission(permission.ID)
}

// UpdatePermission renames a permission and replaces its role set when
// one is provided.
func (s *AccessService) UpdatePermission(id uint, input PermissionInput) (*db.Permission, error) {
	var permission db.Permission
	if err := s.db.First(&permission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != permission.Name {
		var count int64
		if err := s.db.Model(&db.Permission{}).
			Where("name = ? AND id <> ?", name, id).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrPermissionExists
		}
		permission.Name = name
	}
	if input.Description != nil {
		permission.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&permission).Error; err != nil {
			return err
		}
		if input.RoleIDs != nil {
			return s.replacePermissionRoles(tx, &permission, *input.RoleIDs)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.getPermission(permission.ID)
}

// DeletePermission detaches roles and direct user grants before
// removing the permission row.
func (s *AccessService) DeletePermission(id uint) error {
	var permission db.Permission
	if err := s.db.First(&permission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPermissionNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&permission).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&permission).Association("Users").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&permission).Error
	})
}

// SetUserRoles fully replaces the user's role set.
func (s *AccessService) SetUserRoles(userID uint, roleIDs []uint) (*db.User, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.replaceUserRoles(tx, user, roleIDs)
	}); err != nil {
		return nil, err
	}

	return s.reloadUser(userID)
}

// SetUserPermissions fully replaces the user's direct grants.
func (s *AccessService) SetUserPermissions(userID uint, permissionIDs []uint) (*db.User, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.replaceUserPermissions(tx, user, permissionIDs)
	}); err != nil {
		return nil, err
	}

	return s.reloadUser(userID)
}

// ReplaceAccess replaces both the role set and the direct grants in a
// single transaction, for callers that cannot tolerate the two-call
// race window.
func (s *AccessService) ReplaceAccess(userID uint, roleIDs, permissionIDs []uint) (*db.User, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.replaceUserRoles(tx, user, roleIDs); err != nil {
			return err
		}
		return s.replaceUserPermissions(tx, user, permissionIDs)
	}); err != nil {
		return nil, err
	}

	return s.reloadUser(userID)
}

func (s *AccessService) replaceRolePermissions(tx *gorm.DB, role *db.Role, ids []uint) error {
	ids = lo.Uniq(ids)
	var permissions []db.Permission
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&permissions).Error; err != nil {
			return err
		}
		if len(permissions) != len(ids) {
			return ErrPermissionNotFound
		}
	}
	return tx.Model(role).Association("Permissions").Replace(permissions)
}

func (s *AccessService) replacePermissionRoles(tx *gorm.DB, permission *db.Permission, ids []uint) error {
	ids = lo.Uniq(ids)
	var roles []db.Role
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
			return err
		}
		if len(roles) != len(ids) {
			return ErrRoleNotFound
		}
	}
	return tx.Model(permission).Association("Roles").Replace(roles)
}

func (s *AccessService) replaceUserRoles(tx *gorm.DB, user *db.User, ids []uint) error {
	ids = lo.Uniq(ids)
	var roles []db.Role
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
			return err
		}
		if len(roles) != len(ids) {
			return ErrRoleNotFound
		}
	}
	return tx.Model(user).Association("Roles").Replace(roles)
}

func (s *AccessService) replaceUserPermissions(tx *gorm.DB, user *db.User, ids []uint) error {
	ids = lo.Uniq(ids)
	var permissions []db.Permission
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&permissions).Error; err != nil {
			return err
		}
		if len(permissions) != len(ids) {
			return ErrPermissionNotFound
		}
	}
	return tx.Model(user).Association("Permissions").Replace(permissions)
}

func (s *AccessService) getRole(id uint) (*db.Role, error) {
	var role db.Role
	if err := s.db.Preload("Permissions").First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *AccessService) getPermission(id uint) (*db.Permission, error) {
	var permission db.Permission
	if err := s.db.Preload("Roles").First(&permission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}
		return nil, err
	}
	return &permission, nil
}

func (s *AccessService) findUser(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AccessService) reloadUser(id uint) (*db.User, error) {
	var user db.User
	if err := s.db.Preload("Roles").Preload("Permissions").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
