package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/worldview-app/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
}

// AccountService encapsulates registration, login and account lookup.
type AccountService struct {
	repo     AccountRepository
	events   emitter
	hashCost int
}

// AccountOption customizes an AccountService.
type AccountOption func(*AccountService)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) AccountOption {
	return func(s *AccountService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

func NewAccountService(repo AccountRepository, publisher EventPublisher, logger *slog.Logger, opts ...AccountOption) *AccountService {
	s := &AccountService{
		repo:     repo,
		events:   newEmitter(publisher, logger),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account after checking that neither the username nor
// the email is taken.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (types.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return types.Account{}, fmt.Errorf("username, email and password are required: %w", ErrValidation)
	}

	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return types.Account{}, fmt.Errorf("check existing account: %w", err)
	}
	if exists {
		return types.Account{}, ErrConflict
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return types.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.repo.Create(ctx, types.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Favorites:    []string{},
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.events.emit(ctx, types.Event{Type: types.EventAccountRegistered, AccountID: account.ID})
	return account, nil
}

// Login returns the account whose email and password match.
func (s *AccountService) Login(ctx context.Context, email, password string) (types.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.Account{}, fmt.Errorf("email and password are required: %w", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Account{}, ErrInvalidCredentials
		}
		return types.Account{}, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

func (s *AccountService) GetByID(ctx context.Context, id int) (types.Account, error) {
	return s.repo.GetByID(ctx, id)
}
