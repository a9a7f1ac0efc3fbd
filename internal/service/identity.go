package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/secondchance/secondchance/internal/auth"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/model"
	"github.com/secondchance/secondchance/internal/store"
)

// Password length bounds in bytes. bcrypt refuses input longer than 72.
const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

// TokenSigner issues a session token for a user id.
type TokenSigner interface {
	Sign(userID string) (string, error)
}

// IdentityService handles registration, login and profile updates.
type IdentityService struct {
	store   store.Gateway
	hasher  auth.Hasher
	tokens  TokenSigner
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(gw store.Gateway, hasher auth.Hasher, tokens TokenSigner, logger *slog.Logger, recorder metrics.Recorder) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &IdentityService{
		store:   gw,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is returned by successful identity operations.
type AuthResult struct {
	Token  string
	UserID string
	Name   string
	Email  string
}

// Register creates a user and returns a token for it.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := validateRegister(input); err != nil {
		return nil, err
	}

	// Fast path; the unique index on email settles concurrent registrations.
	_, err := s.store.FindOne(ctx, store.CollectionUsers, store.Where(store.Eq("email", input.Email)))
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, store.ErrNotFound):
		return nil, internalError("lookup user", err)
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	user := &model.User{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: digest,
		CreatedAt:    s.now(),
	}

	id, err := s.store.InsertOne(ctx, store.CollectionUsers, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, internalError("insert user", err)
	}

	token, err := s.tokens.Sign(id)
	if err != nil {
		return nil, internalError("sign token", err)
	}

	s.metrics.IncUserRegistered()
	s.logger.Info("user_registered", "user_id", id)

	return &AuthResult{
		Token:  token,
		UserID: id,
		Name:   user.FirstName,
		Email:  user.Email,
	}, nil
}

// Login verifies credentials and returns a fresh token.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" {
		return nil, invalid("email", "is required")
	}
	if password == "" {
		return nil, invalid("password", "is required")
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.IncLogin(false)
			s.logger.Warn("login_unknown_user", "email_hash", auth.QuickHash(email))
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, internalError("verify password", err)
	}
	if !ok {
		s.metrics.IncLogin(false)
		s.logger.Warn("login_failed", "user_id", user.IDString())
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Sign(user.IDString())
	if err != nil {
		return nil, internalError("sign token", err)
	}

	s.metrics.IncLogin(true)
	s.logger.Info("user_logged_in", "user_id", user.IDString())

	return &AuthResult{
		Token:  token,
		UserID: user.IDString(),
		Name:   user.FirstName,
		Email:  user.Email,
	}, nil
}

// UpdateProfileInput defines input for a profile update.
type UpdateProfileInput struct {
	Email     string
	FirstName string
	LastName  *string
}

// UpdateProfile changes the user's name and returns a fresh token.
// Only the named fields are written; the stored document is not replaced.
func (s *IdentityService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*AuthResult, error) {
	if input.Email == "" {
		return nil, invalid("email", "header is required")
	}
	if input.FirstName == "" {
		return nil, invalid("name", "is required")
	}

	set := bson.M{
		"firstName": input.FirstName,
		"updatedAt": s.now(),
	}
	if input.LastName != nil {
		set["lastName"] = *input.LastName
	}

	raw, err := s.store.FindOneAndUpdate(ctx, store.CollectionUsers, store.Where(store.Eq("email", input.Email)), set)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("update user", err)
	}

	var user model.User
	if err := bson.Unmarshal(raw, &user); err != nil {
		return nil, internalError("decode user", err)
	}

	token, err := s.tokens.Sign(user.IDString())
	if err != nil {
		return nil, internalError("sign token", err)
	}

	s.metrics.IncProfileUpdated()
	s.logger.Info("user_profile_updated", "user_id", user.IDString())

	return &AuthResult{
		Token:  token,
		UserID: user.IDString(),
		Name:   user.FirstName,
		Email:  user.Email,
	}, nil
}

func (s *IdentityService) findUser(ctx context.Context, email string) (*model.User, error) {
	raw, err := s.store.FindOne(ctx, store.CollectionUsers, store.Where(store.Eq("email", email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internalError("lookup user", err)
	}

	var user model.User
	if err := bson.Unmarshal(raw, &user); err != nil {
		return nil, internalError("decode user", err)
	}

	return &user, nil
}

func validateRegister(input RegisterInput) error {
	if input.Email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(input.Email)
	if err != nil || addr.Address != input.Email {
		return invalid("email", "must be a valid email address")
	}
	if len(input.Password) < minPasswordLength {
		return invalid("password", "must be at least 6 characters")
	}
	if len(input.Password) > maxPasswordLength {
		return invalid("password", "must be at most 72 bytes")
	}
	return nil
}
