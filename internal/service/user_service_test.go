package service

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestUserCreateAndAuthenticate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Create(UserInput{
		Username: strPtr("editor"),
		Password: strPtr("s3cret"),
		Email:    strPtr("editor@unicms.edu"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Role != "user" {
		t.Fatalf("expected default role user, got %q", user.Role)
	}
	if user.Password == "s3cret" {
		t.Fatalf("password stored in plaintext")
	}

	if _, err := svc.Authenticate("editor", "s3cret"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate("editor", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Authenticate("ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUserCreateRejectsDuplicates(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)

	if _, err := svc.Create(UserInput{
		Username: strPtr("editor"),
		Password: strPtr("s3cret"),
		Email:    strPtr("editor@unicms.edu"),
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := svc.Create(UserInput{
		Username: strPtr("editor"),
		Password: strPtr("other"),
	}); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
	if _, err := svc.Create(UserInput{
		Username: strPtr("editor2"),
		Password: strPtr("other"),
		Email:    strPtr("editor@unicms.edu"),
	}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestUserUpdateRehashesPassword(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Create(UserInput{Username: strPtr("editor"), Password: strPtr("first")})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := svc.Update(user.ID, UserInput{Password: strPtr("second")}); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if _, err := svc.Authenticate("editor", "first"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := svc.Authenticate("editor", "second"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestUserUpdateSparseFields(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Create(UserInput{
		Username: strPtr("editor"),
		Password: strPtr("s3cret"),
		Name:     strPtr("Pat Editor"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	updated, err := svc.Update(user.ID, UserInput{Email: strPtr("pat@unicms.edu")})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Name != "Pat Editor" || updated.Username != "editor" {
		t.Fatalf("untouched fields changed: name=%q username=%q", updated.Name, updated.Username)
	}
	if updated.Email != "pat@unicms.edu" {
		t.Fatalf("email not applied: %q", updated.Email)
	}
	// the old password still authenticates
	if _, err := svc.Authenticate("editor", "s3cret"); err != nil {
		t.Fatalf("authenticate after sparse update: %v", err)
	}
}

func TestUserDeleteClearsAccessJoins(t *testing.T) {
	gdb := setupServiceTestDB(t)
	users := NewUserService(gdb)
	access := NewAccessService(gdb)

	user, err := users.Create(UserInput{Username: strPtr("editor"), Password: strPtr("s3cret")})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	role, err := access.CreateRole(RoleInput{Name: "editor"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if _, err := access.SetUserRoles(user.ID, []uint{role.ID}); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	if err := users.Delete(user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	var joins int64
	if err := gdb.Table("user_roles").Where("user_id = ?", user.ID).Count(&joins).Error; err != nil {
		t.Fatalf("count joins: %v", err)
	}
	if joins != 0 {
		t.Fatalf("expected join rows removed, found %d", joins)
	}
	if _, err := users.Get(user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after hard delete, got %v", err)
	}
}
