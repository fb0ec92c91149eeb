package service

import (
	"context"
	"errors"
	"fmt"

	"libris-backend/internal/domain"
	"libris-backend/internal/repository"
	"libris-backend/internal/security"
)

var ErrUserNotFound = errors.New("user not found")

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

// Create registers a user with an explicit role; used by the admin
// surface and the CLI, unlike self-service Register which always creates
// members.
func (s *userService) Create(ctx context.Context, user *domain.User, password string) error {
	if existing, err := s.userRepo.GetByEmail(ctx, user.Email); err != nil {
		return fmt.Errorf("lookup email: %w", err)
	} else if existing != nil {
		return ErrEmailTaken
	}
	if existing, err := s.userRepo.GetByUsername(ctx, user.Username); err != nil {
		return fmt.Errorf("lookup username: %w", err)
	} else if existing != nil {
		return ErrUsernameTaken
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if user.Role == "" {
		user.Role = domain.UserRoleMember
	}
	user.Active = true
	return s.userRepo.Create(ctx, user)
}

func (s *userService) Get(ctx context.Context, id int32) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, page, pageSize int32) ([]domain.User, int32, error) {
	return s.userRepo.List(ctx, page, pageSize)
}

func (s *userService) Update(ctx context.Context, user *domain.User) error {
	existing, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrUserNotFound
	}
	return s.userRepo.Update(ctx, user)
}

func (s *userService) SetActive(ctx context.Context, id int32, active bool) error {
	existing, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrUserNotFound
	}
	return s.userRepo.SetActive(ctx, id, active)
}

func (s *userService) Delete(ctx context.Context, id int32) error {
	existing, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrUserNotFound
	}
	return s.userRepo.Delete(ctx, id)
}
