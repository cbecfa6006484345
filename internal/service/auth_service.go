package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"balancestudio/config"
	"balancestudio/internal/auth"
	"balancestudio/internal/domain"
	"balancestudio/internal/models"
	"balancestudio/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrNoSuchAccount      = errors.New("no account for this Google identity")
	ErrInviteDelivery     = errors.New("could not deliver invite email")
	ErrOTPDelivery        = errors.New("could not deliver verification code")
)

const (
	otpTTL      = 10 * time.Minute
	resetTTL    = time.Hour
	otpDigits   = 6
	minPassword = 8
)

type AuthService struct {
	cfg     *config.Config
	users   *repository.UserRepository
	otps    *repository.OTPRepository
	resets  *repository.ResetRepository
	invites *repository.InviteRepository
	mail    *MailService
	log     *slog.Logger
}

func NewAuthService(
	cfg *config.Config,
	users *repository.UserRepository,
	otps *repository.OTPRepository,
	resets *repository.ResetRepository,
	invites *repository.InviteRepository,
	mail *MailService,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:     cfg,
		users:   users,
		otps:    otps,
		resets:  resets,
		invites: invites,
		mail:    mail,
		log:     log,
	}
}

// TokenPair is what every successful authentication returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *AuthService) issueTokens(user *models.User) (*TokenPair, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// StartSignup emails a verification code to the address. The account is not
// created until the code is verified.
func (s *AuthService) StartSignup(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	taken, err := s.users.EmailExists(email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	code, err := randomDigits(otpDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	otp := &models.EmailOTP{
		Email:     email,
		Purpose:   domain.OTPPurposeSignup,
		CodeHash:  string(hash),
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.otps.Create(otp); err != nil {
		return err
	}
	if !s.mail.SendOTP(email, code) {
		return ErrOTPDelivery
	}
	return nil
}

// CompleteSignup verifies the code and creates the account. Pending email
// invites addressed to this address are attached to the new user.
func (s *AuthService) CompleteSignup(email, code, name, username, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < minPassword {
		return nil, nil, fmt.Errorf("password must be at least %d characters", minPassword)
	}
	otp, err := s.otps.FindActive(email, domain.OTPPurposeSignup)
	if err != nil {
		return nil, nil, err
	}
	if otp == nil || bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)) != nil {
		return nil, nil, ErrInvalidOTP
	}
	if err := s.otps.MarkUsed(otp.ID); err != nil {
		return nil, nil, err
	}
	taken, err := s.users.EmailExists(email)
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, ErrEmailTaken
	}

	username = strings.TrimSpace(username)
	if username != "" {
		exists, err := s.users.UsernameExists(username)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, ErrUsernameTaken
		}
	} else {
		username, err = s.buildUniqueUsername(name, email)
		if err != nil {
			return nil, nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{
		Email:        email,
		Username:     username,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(user); err != nil {
		return nil, nil, err
	}
	if err := s.invites.ClaimByEmail(email, user.ID); err != nil {
		s.log.Warn("claim invites for new user", "user_id", user.ID, "error", err)
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Login accepts email or username as the identifier.
func (s *AuthService) Login(identifier, password string) (*models.User, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	user, err := s.users.FindByEmailOrUsername(identifier)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if user.PasswordHash == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// LoginWithGoogle signs a verified Google identity into an existing account,
// linking it by email on first use. It never creates accounts; signup stays
// the OTP flow.
func (s *AuthService) LoginWithGoogle(googleID, email, name string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByGoogleID(googleID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, nil, err
		}
		user, err = s.users.FindByEmail(email)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, nil, ErrNoSuchAccount
			}
			return nil, nil, err
		}
		user.GoogleID = &googleID
		if err := s.users.Update(user); err != nil {
			return nil, nil, err
		}
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(refreshToken string) (*TokenPair, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(user)
}

// RequestPasswordReset emails a one-time reset link. Unknown addresses are
// silently accepted so the endpoint does not leak which emails exist.
func (s *AuthService) RequestPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	token := uuid.NewString()
	rec := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(resetTTL),
	}
	if err := s.resets.Create(rec); err != nil {
		return err
	}
	if !s.mail.SendPasswordReset(email, token) {
		s.log.Warn("password reset email failed", "user_id", user.ID)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < minPassword {
		return fmt.Errorf("password must be at least %d characters", minPassword)
	}
	rec, err := s.resets.FindActiveByHash(hashToken(token))
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrInvalidResetToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(rec.UserID, string(hash)); err != nil {
		return err
	}
	return s.resets.MarkUsed(rec.ID)
}

// ChangePassword verifies the current password before replacing it.
func (s *AuthService) ChangePassword(userID uint, current, next string) error {
	if len(next) < minPassword {
		return fmt.Errorf("password must be at least %d characters", minPassword)
	}
	user, err := s.users.FindByID(userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(userID, string(hash))
}

// UpdateProfile changes the display name and optionally the username.
func (s *AuthService) UpdateProfile(userID uint, name, username string) (*models.User, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = name
	}
	if username = strings.TrimSpace(username); username != "" && username != user.Username {
		exists, err := s.users.UsernameExists(username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameTaken
		}
		user.Username = username
	}
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

var usernameJunk = regexp.MustCompile(`[^a-z0-9_]+`)

// buildUniqueUsername derives a username from the name or email local part,
// appending digits until it is free.
func (s *AuthService) buildUniqueUsername(name, email string) (string, error) {
	base := strings.ToLower(strings.TrimSpace(name))
	if base == "" {
		base = email
		if i := strings.IndexByte(base, '@'); i > 0 {
			base = base[:i]
		}
	}
	base = usernameJunk.ReplaceAllString(strings.ReplaceAll(base, " ", "_"), "")
	if base == "" {
		base = "user"
	}
	if len(base) > 24 {
		base = base[:24]
	}
	candidate := base
	for i := 0; i < 10; i++ {
		exists, err := s.users.UsernameExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix, err := randomDigits(4)
		if err != nil {
			return "", err
		}
		candidate = base + suffix
	}
	return base + uuid.NewString()[:8], nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", d.Int64())
	}
	return b.String(), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
