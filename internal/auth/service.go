package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var ErrMissingField = errors.New("missing required field")

// Registration is the input for creating an account.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Session is returned after a successful register or login.
type Session struct {
	Token  string    `json:"token"`
	User   core.User `json:"-"`
	UserID string    `json:"user_id"`
}

// Service registers and authenticates users.
type Service struct {
	users  storage.UserStore
	tokens *TokenIssuer
	logger *log.Logger
}

func NewService(users storage.UserStore, tokens *TokenIssuer, logger *log.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger.WithComponent(log.ComponentAuth)}
}

// Tokens exposes the issuer for middleware wiring.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// CreateUser validates reg and stores a new account without issuing a token.
func (s *Service) CreateUser(ctx context.Context, reg Registration) (core.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return core.User{}, ErrMissingField
	}
	if _, err := mail.ParseAddress(reg.Email); err != nil {
		return core.User{}, fmt.Errorf("%w: invalid email", ErrMissingField)
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return core.User{}, err
	}
	return s.users.CreateUser(ctx, core.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(reg.FullName),
	})
}

// Register creates the account and returns a session for it.
func (s *Service) Register(ctx context.Context, reg Registration) (Session, error) {
	u, err := s.CreateUser(ctx, reg)
	if err != nil {
		return Session{}, err
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldOwnerID, u.ID, log.FieldOperation, log.OpRegister)
	return s.session(u)
}

// Login checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldOwnerID, u.ID, log.FieldOperation, log.OpLogin)
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) session(u core.User) (Session, error) {
	tok, _, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, User: u, UserID: u.ID}, nil
}
