package service

import (
	"context"
	"strings"

	"couponhub/internal/user"
	"couponhub/pkg/db"

	"github.com/pkg/errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserInUse    = errors.New("user is referenced by coupons or links")
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*user.User, error)
	ListByName(ctx context.Context, name string) ([]*user.User, error)
	Update(ctx context.Context, u *user.User) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Create(ctx context.Context, email, name string) (*user.User, error) {
	email = normalizeEmail(email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "lookup user by email")
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	u := &user.User{Email: email, Name: strings.TrimSpace(name)}
	if err := s.repo.Create(ctx, u); err != nil {
		// гонка двух регистраций одного email
		if db.IsUniqueViolation(err, db.UsersEmailKey) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "create user")
	}

	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get user %d", id)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, errors.Wrap(err, "get user by email")
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) ListByName(ctx context.Context, name string) ([]*user.User, error) {
	users, err := s.repo.ListByName(ctx, strings.TrimSpace(name))
	return users, errors.Wrap(err, "list users by name")
}

func (s *UserService) List(ctx context.Context) ([]*user.User, error) {
	users, err := s.repo.List(ctx)
	return users, errors.Wrap(err, "list users")
}

// Exists реализует каталог пользователей для выдачи купонов.
func (s *UserService) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "check user %d", id)
	}
	return ok, nil
}

func (s *UserService) Update(ctx context.Context, id int64, email, name string) (*user.User, error) {
	email = normalizeEmail(email)

	other, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "lookup user by email")
	}
	if other != nil && other.ID != id {
		return nil, ErrEmailTaken
	}

	u := &user.User{ID: id, Email: email, Name: strings.TrimSpace(name)}
	found, err := s.repo.Update(ctx, u)
	if err != nil {
		if db.IsUniqueViolation(err, db.UsersEmailKey) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrapf(err, "update user %d", id)
	}
	if !found {
		return nil, ErrUserNotFound
	}

	return s.GetByID(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserInUse
		}
		return errors.Wrapf(err, "delete user %d", id)
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
