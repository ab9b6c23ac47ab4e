package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"gemchat/internal/model"
)

const passwordResetTTL = time.Hour

// LocalProvider keeps accounts in the SQLite users table. Passwords are bcrypt
// hashes and identities carry an HS256 token signed with the configured secret.
type LocalProvider struct {
	db       *sql.DB
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time

	mu      sync.RWMutex
	current *model.Identity
}

func NewLocalProvider(db *sql.DB, secret string, ttl time.Duration) *LocalProvider {
	return &LocalProvider{
		db:       db,
		secret:   []byte(secret),
		ttl:      ttl,
		validate: validator.New(),
		now:      time.Now,
	}
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (p *LocalProvider) checkEmail(email string) error {
	if err := p.validate.Var(email, "required,email"); err != nil {
		return newError(CodeInvalidEmail)
	}
	return nil
}

func (p *LocalProvider) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return nil, err
	}

	var uid, hash string
	err := p.db.QueryRowContext(ctx, "SELECT uid, password_hash FROM users WHERE email = ?", email).Scan(&uid, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(CodeEmailNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		slog.Warn("Login failed - invalid password", "email", MaskEmail(email))
		return nil, newError(CodeInvalidPassword)
	}

	token, err := p.issueToken(uid, email)
	if err != nil {
		return nil, fmt.Errorf("could not sign token: %w", err)
	}

	identity := &model.Identity{UID: uid, Email: email, Token: token}
	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()

	cp := *identity
	return &cp, nil
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return err
	}
	if len(password) < MinPasswordLength {
		return newError(CodeWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("could not hash password: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		"INSERT INTO users (uid, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), email, string(hash), p.now().UnixMilli(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return newError(CodeEmailExists)
		}
		return fmt.Errorf("could not create user: %w", err)
	}

	slog.Info("Account registered", "email", MaskEmail(email))
	return nil
}

// SendPasswordReset stores a single-use reset token. Delivering it is left to
// an operator; it is only logged at debug level and redeemed with
// ResetPassword (the reset-password command).
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := p.checkEmail(email); err != nil {
		return err
	}

	var uid string
	err := p.db.QueryRowContext(ctx, "SELECT uid FROM users WHERE email = ?", email).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return newError(CodeEmailNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not load user: %w", err)
	}

	token := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		"INSERT INTO password_resets (token, uid, expires_at) VALUES (?, ?, ?)",
		token, uid, p.now().Add(passwordResetTTL).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("could not store reset token: %w", err)
	}

	slog.Info("Password reset issued", "email", MaskEmail(email))
	slog.Debug("Password reset token", "uid", uid, "token", token)
	return nil
}

// ResetPassword redeems a token from SendPasswordReset. Tokens are single use;
// every token of the account is dropped once the password changes.
func (p *LocalProvider) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return newError(CodeWeakPassword)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var uid string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, "SELECT uid, expires_at FROM password_resets WHERE token = ?", token).Scan(&uid, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return newError(CodeInvalidOobCode)
	}
	if err != nil {
		return fmt.Errorf("could not load reset token: %w", err)
	}
	if p.now().UnixMilli() > expiresAt {
		if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE token = ?", token); err != nil {
			return fmt.Errorf("could not drop expired token: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("could not drop expired token: %w", err)
		}
		return newError(CodeExpiredOobCode)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("could not hash password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE uid = ?", string(hash), uid); err != nil {
		return fmt.Errorf("could not update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE uid = ?", uid); err != nil {
		return fmt.Errorf("could not drop reset tokens: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit password reset: %w", err)
	}

	slog.Info("Password reset completed", "uid", uid)
	return nil
}

func (p *LocalProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

// CurrentIdentity returns the signed-in identity while its token is still valid.
func (p *LocalProvider) CurrentIdentity() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	if _, err := p.VerifyToken(p.current.Token); err != nil {
		slog.Info("Stored session expired", "uid", p.current.UID)
		p.current = nil
		return nil
	}
	cp := *p.current
	return &cp
}

func (p *LocalProvider) issueToken(uid, email string) (string, error) {
	now := p.now()
	claims := identityClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// VerifyToken checks the signature and expiry of a token issued by Login.
func (p *LocalProvider) VerifyToken(tokenString string) (*model.Identity, error) {
	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &model.Identity{UID: claims.Subject, Email: claims.Email, Token: tokenString}, nil
}
