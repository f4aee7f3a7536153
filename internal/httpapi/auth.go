package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

// AccountStore is the slice of the repository the auth manager needs.
type AccountStore interface {
	GetUserAccount(ctx context.Context, username string) (*domain.UserAccount, error)
	SaveUserAccount(ctx context.Context, account domain.UserAccount) error
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	accounts AccountStore
}

type stockroomClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, accounts AccountStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), tokenTTL: tokenTTL, accounts: accounts}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	account, err := a.accounts.GetUserAccount(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}

	if !isPasswordHash(account.PasswordHash) {
		// Accounts imported with a plain password are upgraded on first login.
		if account.PasswordHash == "" || account.PasswordHash != req.Password {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		hashed, err := hashPassword(req.Password)
		if err != nil {
			return domain.LoginResponse{}, err
		}
		account.PasswordHash = hashed
		if err := a.accounts.SaveUserAccount(ctx, *account); err != nil {
			return domain.LoginResponse{}, err
		}
	} else if !verifyPassword(account.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !account.Active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(account.Username, account.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        account.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &stockroomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if !domain.ValidRole(claims.Role) {
		return domain.Actor{}, errors.New("invalid token role")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := stockroomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "stockroom",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateAccount registers a new login. Only admins reach this through the API.
func (a *AuthManager) CreateAccount(ctx context.Context, req domain.AccountCreateRequest) (domain.AccountView, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.AccountView{}, fmt.Errorf("%w: username must be at least 4 characters", store.ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.AccountView{}, fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return domain.AccountView{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidInput)
	}
	if !domain.ValidRole(req.Role) {
		return domain.AccountView{}, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, req.Role)
	}

	if _, err := a.accounts.GetUserAccount(ctx, username); err == nil {
		return domain.AccountView{}, fmt.Errorf("%w: username already exists", store.ErrDuplicate)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.AccountView{}, err
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return domain.AccountView{}, fmt.Errorf("failed to hash password")
	}
	account := domain.UserAccount{Username: username, PasswordHash: hashed, Role: req.Role, Active: true}
	if err := a.accounts.SaveUserAccount(ctx, account); err != nil {
		return domain.AccountView{}, err
	}
	return domain.AccountView{Username: username, Role: req.Role, Active: true}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
