package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/repository"
	"github.com/notifyhub/event-notifier/internal/service"
)

func TestUserService_Register(t *testing.T) {
	repo := repository.NewMockUserRepository()
	svc := service.NewUserService(repo, bcrypt.MinCost)
	ctx := context.Background()

	u, err := svc.Register(ctx, domain.RegisterUserRequest{Username: "ada", Password: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected an assigned id")
	}

	hash := repo.PasswordHash("ada")
	if hash == "" || hash == "s3cret" {
		t.Fatalf("expected a bcrypt hash, got %q", hash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestUserService_Register_Duplicate(t *testing.T) {
	svc := service.NewUserService(repository.NewMockUserRepository(), bcrypt.MinCost)
	ctx := context.Background()
	req := domain.RegisterUserRequest{Username: "ada", Password: "pw"}

	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUserService_Register_Invalid(t *testing.T) {
	svc := service.NewUserService(repository.NewMockUserRepository(), bcrypt.MinCost)

	cases := []struct {
		req  domain.RegisterUserRequest
		want error
	}{
		{domain.RegisterUserRequest{Password: "pw"}, domain.ErrInvalidUsername},
		{domain.RegisterUserRequest{Username: "ada"}, domain.ErrInvalidPassword},
		{domain.RegisterUserRequest{Username: "ada", Password: strings.Repeat("p", 73)}, domain.ErrInvalidPassword},
	}
	for _, tc := range cases {
		if _, err := svc.Register(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%+v: expected %v, got %v", tc.req, tc.want, err)
		}
	}
}

func TestUserService_List(t *testing.T) {
	svc := service.NewUserService(repository.NewMockUserRepository(), bcrypt.MinCost)
	ctx := context.Background()
	for _, name := range []string{"ada", "grace"} {
		if _, err := svc.Register(ctx, domain.RegisterUserRequest{Username: name, Password: "pw"}); err != nil {
			t.Fatal(err)
		}
	}

	users, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].Username != "grace" {
		t.Fatalf("expected newest first, got %+v", users)
	}
}
