package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tokenapi/tokenapi/internal/auth"
	"github.com/tokenapi/tokenapi/internal/metrics"
	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// UserStore is the user persistence the service depends on. Store calls
// made with the ctx RunInTx passes to fn, including those the token issuer
// makes, share one transaction.
type UserStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// TokenIssuer issues or refreshes a user's token.
type TokenIssuer interface {
	IssueOrRefresh(ctx context.Context, userID int64) (*model.Token, bool, error)
}

// UserService handles account creation, login and lookup.
type UserService struct {
	store   UserStore
	tokens  TokenIssuer
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(store UserStore, tokens TokenIssuer, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:   store,
		tokens:  tokens,
		metrics: recorder,
		logger:  logger.With("component", "service.user"),
	}
}

// CreateUserInput is the payload for CreateUser. Nil means absent.
type CreateUserInput struct {
	Username *string
	Password *string
	Email    *string
	IsStaff  bool
}

// LoginInput is the payload for Login. Nil means absent.
type LoginInput struct {
	Username *string
	Password *string
}

// LoginResult is a successful login.
type LoginResult struct {
	Token *model.Token
	User  *model.User
}

// CreateUser validates input, stores the user and issues their first token.
// Neither is kept unless both succeed.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, *model.Token, error) {
	errs := ValidationError{}

	username := requireString(errs, "username", in.Username, 150)
	if username != "" && !errs.Has("username") && !usernameRegex.MatchString(username) {
		errs.Add("username", MsgBadUsername)
	}

	password := ""
	switch {
	case in.Password == nil:
		errs.Add("password", MsgRequired)
	case *in.Password == "":
		errs.Add("password", MsgBlank)
	default:
		password = *in.Password
	}

	email := ""
	if in.Email != nil {
		email = strings.TrimSpace(*in.Email)
		if email != "" && !validEmail(email) {
			errs.Add("email", MsgInvalidEmail)
		} else if len(email) > 254 {
			errs.Add("email", maxLengthMsg(254))
		}
	}

	if err := errs.OrNil(); err != nil {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      in.IsStaff,
		IsSuperuser:  in.IsStaff,
	}
	var token *model.Token
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrUsernameExists) {
				return ValidationError{"username": {MsgUsernameTaken}}
			}
			return fmt.Errorf("create user: %w", err)
		}

		var err error
		token, _, err = s.tokens.IssueOrRefresh(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("issue initial token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncUserCreated()
	s.logger.Info("user created",
		"user_id", user.ID,
		"username", user.Username,
	)

	return user, token, nil
}

// Login verifies credentials and returns the user's live token.
// Unknown users, wrong passwords and inactive users fail identically.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	errs := ValidationError{}
	username := requireString(errs, "username", in.Username, 0)

	password := ""
	switch {
	case in.Password == nil:
		errs.Add("password", MsgRequired)
	case *in.Password == "":
		errs.Add("password", MsgBlank)
	default:
		password = *in.Password
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	badLogin := ValidationError{NonFieldErrors: {MsgBadLogin}}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Hash anyway so unknown usernames cost the same as wrong passwords.
			_, _ = auth.VerifyPassword(password, dummyHash)
			s.metrics.IncLoginAttempt(metrics.LoginFailure)
			return nil, badLogin
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil && !errors.Is(err, auth.ErrInvalidHash) {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !user.IsActive {
		s.metrics.IncLoginAttempt(metrics.LoginFailure)
		s.logger.Info("login failed", "username", username)
		return nil, badLogin
	}

	token, _, err := s.tokens.IssueOrRefresh(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncLoginAttempt(metrics.LoginSuccess)
	return &LoginResult{Token: token, User: user}, nil
}

// ListUsers returns every user.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// dummyHash is a valid argon2id hash of a random string.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$2n3T7dKSmIP7mWCWW7d3NCPbUHGmP4Kd3cAhhxkLF7w"
