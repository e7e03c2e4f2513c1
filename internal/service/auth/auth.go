package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/logger"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/repository"
)

// Identifier looking like this is treated as email, anything else as username
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Client facing messages
const (
	msgAllFieldsRequired     = "All fields are required"
	msgInvalidEmail          = "Invalid email format"
	msgUsernameTaken         = "User already exists with username"
	msgEmailTaken            = "User already exists with email"
	msgCredentialsRequired   = "Username or email and password are required"
	msgInvalidCredentials    = "Invalid identifier or password"
	msgRefreshMissing        = "Refresh token not provided"
	msgRefreshExpired        = "Refresh token expired, please log in again"
	msgRefreshInvalid        = "Invalid refresh token signature"
	msgRefreshRevoked        = "Invalid or revoked refresh token"
	msgAccessExpired         = "Access token expired, please refresh or log in again"
	msgAccessInvalid         = "Invalid access token"
	msgLogoutUnauthenticated = "User not authenticated for logout"
	msgUserNotFound          = "User not found"
	msgRegisterFailed        = "Failed to register user"
	msgLoginFailed           = "Failed to log in"
	msgRefreshFailed         = "Failed to refresh token"
	msgLogoutFailed          = "Failed to logout"
	msgAuthenticateFailed    = "Failed to validate token"
)

const dummyPasswordForTimingEq = "not-a-real-password"

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Verify(hashedPassword string, password string) bool
}

// Issues and parses signed tokens
type TokenManager interface {
	GeneratePair(user models.User) (models.TokenPair, error)
	ParseAccess(access string) (models.Principal, error)
	ParseRefresh(refresh string) (uuid.UUID, error)
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher with default cost if not set
	Hasher PasswordHasher

	// NoOp logger if not set
	Logger logger.Logger
}

type RegisterParams struct {
	Name     string
	Username string
	Email    string
	Password string
}

// Authenticated user with freshly issued tokens
type Session struct {
	User   models.User
	Tokens models.TokenPair
}

// Auth service
// Stateless: every piece of mutable state lives in the storage
type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	tokens TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	storage repository.Storage
	logger  logger.Logger

	// Hash verified when user not found, so login costs the same for existing and missing users
	dummyHash func() (string, error)
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens:  tokens,
		hasher:  hasher,
		storage: storage,
		logger:  l.With("service", "auth"),
		dummyHash: sync.OnceValues(func() (string, error) {
			return hasher.Hash(dummyPasswordForTimingEq)
		}),
	}, nil
}

// Create user and log it in with a fresh token pair
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (Session, error) {
	var session Session

	if p.Name == "" || p.Username == "" || p.Email == "" || p.Password == "" {
		return session, apperrors.Validation(msgAllFieldsRequired)
	}
	if !emailPattern.MatchString(p.Email) {
		return session, apperrors.Validation(msgInvalidEmail)
	}

	// Preconditions: username first, then email, reported independently
	users := s.storage.User()
	_, err := users.GetUserByUsername(ctx, p.Username)
	if err = takenIfFound(err, apperrors.ErrUsernameTaken); err != nil {
		return session, s.registerError(err)
	}
	_, err = users.GetUserByEmail(ctx, p.Email)
	if err = takenIfFound(err, apperrors.ErrEmailTaken); err != nil {
		return session, s.registerError(err)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return session, s.serverError(msgRegisterFailed, err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err := tx.User().CreateUser(ctx, repository.CreateUserParams{
			Username:       p.Username,
			Email:          p.Email,
			Name:           p.Name,
			HashedPassword: hash,
		})
		if err != nil {
			return err
		}

		pair, err := s.tokens.GeneratePair(user)
		if err != nil {
			return err
		}

		user.RefreshToken = &pair.Refresh.Value
		user, err = tx.User().SaveUser(ctx, user)
		if err != nil {
			return err
		}

		session = Session{User: user, Tokens: pair}
		return nil
	})
	if err != nil {
		return Session{}, s.registerError(err)
	}

	s.logger.Info("user registered", "user_id", session.User.ID)
	return session, nil
}

// Log user in by username or email
// Missing user and wrong password are indistinguishable for the caller
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (Session, error) {
	var session Session

	if identifier == "" || password == "" {
		return session, apperrors.Validation(msgCredentialsRequired)
	}

	var user models.User
	var err error
	if emailPattern.MatchString(identifier) {
		user, err = s.storage.User().GetUserByEmail(ctx, identifier)
	} else {
		user, err = s.storage.User().GetUserByUsername(ctx, identifier)
	}

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		if dummy, hashErr := s.dummyHash(); hashErr == nil {
			s.hasher.Verify(dummy, password)
		}
		return session, apperrors.Unauthorized(msgInvalidCredentials, nil)
	case err != nil:
		return session, s.serverError(msgLoginFailed, err)
	}

	if !s.hasher.Verify(user.HashedPassword, password) {
		return session, apperrors.Unauthorized(msgInvalidCredentials, nil)
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return session, s.serverError(msgLoginFailed, err)
	}

	// Overwrite stored token: any previous session of the user stops refreshing
	user.RefreshToken = &pair.Refresh.Value
	user, err = s.storage.User().SaveUser(ctx, user)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return Session{}, apperrors.Unauthorized(msgInvalidCredentials, nil)
	case err != nil:
		return Session{}, s.serverError(msgLoginFailed, err)
	}

	return Session{User: user, Tokens: pair}, nil
}

// Exchange refresh token for a new pair
// Presented token must be the one stored for the user, it's replaced by the new one atomically
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	if refresh == "" {
		return pair, apperrors.Unauthorized(msgRefreshMissing, nil)
	}

	userID, err := s.tokens.ParseRefresh(refresh)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return pair, apperrors.Unauthorized(msgRefreshExpired, err)
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return pair, apperrors.Forbidden(msgRefreshInvalid, err)
	case err != nil:
		return pair, s.serverError(msgRefreshFailed, err)
	}

	users := s.storage.User()
	user, err := users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return pair, apperrors.Forbidden(msgRefreshRevoked, err)
	case err != nil:
		return pair, s.serverError(msgRefreshFailed, err)
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(refresh)) != 1 {
		return pair, apperrors.Forbidden(msgRefreshRevoked, apperrors.ErrRefreshTokenMismatch)
	}

	pair, err = s.tokens.GeneratePair(user)
	if err != nil {
		return models.TokenPair{}, s.serverError(msgRefreshFailed, err)
	}

	// Concurrent refresh with the same token may have won between read and write
	err = users.SwapRefreshToken(ctx, user.ID, refresh, pair.Refresh.Value)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenMismatch), errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, apperrors.Forbidden(msgRefreshRevoked, err)
	case err != nil:
		return models.TokenPair{}, s.serverError(msgRefreshFailed, err)
	}

	return pair, nil
}

// Forget stored refresh token of the user
// Access tokens already issued stay valid until they expire
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.Unauthorized(msgLogoutUnauthenticated, nil)
	}

	users := s.storage.User()
	user, err := users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.NotFound(msgUserNotFound, err)
	case err != nil:
		return s.serverError(msgLogoutFailed, err)
	}

	user.RefreshToken = nil
	_, err = users.SaveUser(ctx, user)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.NotFound(msgUserNotFound, err)
	case err != nil:
		return s.serverError(msgLogoutFailed, err)
	}

	return nil
}

// Validate access token and return identity it carries
func (s *AuthService) Authenticate(_ context.Context, access string) (models.Principal, error) {
	principal, err := s.tokens.ParseAccess(access)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return principal, apperrors.Unauthorized(msgAccessExpired, err)
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return principal, apperrors.Forbidden(msgAccessInvalid, err)
	case err != nil:
		return principal, s.serverError(msgAuthenticateFailed, err)
	}

	return principal, nil
}

// Turn result of user lookup into precondition error: nil only if user not found
func takenIfFound(lookupErr error, taken error) error {
	switch {
	case lookupErr == nil:
		return taken
	case errors.Is(lookupErr, apperrors.ErrUserNotFound):
		return nil
	default:
		return lookupErr
	}
}

func (s *AuthService) registerError(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrUsernameTaken):
		return apperrors.Conflict(msgUsernameTaken, err)
	case errors.Is(err, apperrors.ErrEmailTaken):
		return apperrors.Conflict(msgEmailTaken, err)
	default:
		return s.serverError(msgRegisterFailed, err)
	}
}

func (s *AuthService) serverError(message string, err error) error {
	s.logger.Error(message, "error", err)
	return apperrors.Server(message, err)
}
