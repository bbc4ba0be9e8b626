package usecase

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/infra/logger"
	"github.com/ledgerline/portal-iam/internal/infra/security"
	"github.com/ledgerline/portal-iam/internal/repository"
)

const (
	defaultInviteTTL = 24 * time.Hour
	defaultResetTTL  = time.Hour

	activationSubject = "Activate your account"
	resetSubject      = "Your password reset link"

	changedByReset      = "password_reset"
	changedByActivation = "account_activation"
	changedByProfile    = "profile_update"
)

var (
	// ErrDuplicateAccount indicates the email or username is already taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrUserNotFound indicates no account matches the supplied identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers unknown accounts, inactive accounts, and
	// password mismatches. Callers receive this one kind; the wrapped cause
	// stays available for logs.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredToken indicates the invite or reset token does not
	// match a live token. Unknown, expired, and already consumed tokens are
	// deliberately indistinguishable.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidSessionToken indicates session token validation failed.
	ErrInvalidSessionToken = errors.New("invalid session token")
	// ErrAlreadyActivated indicates an invite cannot be re-issued because the
	// account has already been activated.
	ErrAlreadyActivated = errors.New("account already activated")
	// ErrWeakPassword indicates the password failed the strength policy.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")
	// ErrHashingFailure indicates the password hasher failed.
	ErrHashingFailure = errors.New("password hashing failed")
	// ErrDeliveryFailure indicates the notification channel failed.
	ErrDeliveryFailure = errors.New("email delivery failed")
)

var (
	errUnknownOrInactiveAccount = fmt.Errorf("%w: unknown or inactive account", ErrInvalidCredentials)
	errPasswordMismatch         = fmt.Errorf("%w: password mismatch", ErrInvalidCredentials)
)

// Mail bodies go through html/template so user-controlled fields are always
// escaped; there is no path that interpolates raw strings into HTML.
var (
	activationEmailTmpl = template.Must(template.New("activation").Parse(
		`<html><body><h1>Hello {{.FirstName}} {{.LastName}}</h1>` +
			`<p>Welcome! An account has been created for you.</p>` +
			`<p>Click <a href="{{.Link}}">here</a> to choose a password and activate it.</p>` +
			`<p>The link expires in {{.TTL}}.</p></body></html>`))

	resetEmailTmpl = template.Must(template.New("reset").Parse(
		`<html><body><h1>Hello {{.FirstName}} {{.LastName}}</h1>` +
			`<p>A password reset was requested for your account.</p>` +
			`<p>Click <a href="{{.Link}}">here</a> to choose a new password.</p>` +
			`<p>The link expires in {{.TTL}}. If you did not request this, ignore this email.</p></body></html>`))
)

// CredentialService owns the account credential lifecycle: creation with
// invite activation, authentication, password reset, and session tokens.
type CredentialService struct {
	users             port.UserStore
	hasher            port.PasswordHasher
	sessions          port.TokenCodec
	notifier          port.NotificationSender
	events            port.EventPublisher
	passwordValidator *security.PasswordValidator
	logger            *zap.Logger
	now               func() time.Time
	inviteTTL         time.Duration
	resetTTL          time.Duration
	baseURL           string
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(
	users port.UserStore,
	hasher port.PasswordHasher,
	sessions port.TokenCodec,
	notifier port.NotificationSender,
	events port.EventPublisher,
	validator *security.PasswordValidator,
	baseURL string,
	log *zap.Logger,
) *CredentialService {
	if validator == nil {
		validator = security.NewPasswordValidator(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		users:             users,
		hasher:            hasher,
		sessions:          sessions,
		notifier:          notifier,
		events:            events,
		passwordValidator: validator,
		logger:            log,
		now:               time.Now,
		inviteTTL:         defaultInviteTTL,
		resetTTL:          defaultResetTTL,
		baseURL:           strings.TrimRight(baseURL, "/"),
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithInviteTTL overrides the invite token lifetime.
func (s *CredentialService) WithInviteTTL(ttl time.Duration) {
	if ttl > 0 {
		s.inviteTTL = ttl
	}
}

// WithResetTTL overrides the reset token lifetime.
func (s *CredentialService) WithResetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
}

// CreateUser provisions a pending account and emails an invite link. The
// account stays inactive until SetPassword consumes the invite token.
//
// The uniqueness constraint in the store is the final authority on duplicate
// accounts; the upfront lookup only produces a friendlier fast path.
func (s *CredentialService) CreateUser(ctx context.Context, params domain.NewUserParams) (domain.User, error) {
	email := strings.TrimSpace(params.Email)
	username := strings.TrimSpace(params.Username)
	if email == "" {
		return domain.User{}, fmt.Errorf("email is required")
	}
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	password := strings.TrimSpace(params.Password)
	if password == "" {
		return domain.User{}, fmt.Errorf("password is required")
	}

	if err := s.passwordValidator.Validate(password, email, username); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	if _, err := s.users.GetByEmailOrUsername(ctx, email, username); err == nil {
		return domain.User{}, ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup existing account: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	rawInvite, err := security.GenerateSecureToken(32)
	if err != nil {
		return domain.User{}, fmt.Errorf("generate invite token: %w", err)
	}

	now := s.now().UTC()
	inviteHash := security.HashToken(rawInvite)
	inviteExpires := now.Add(s.inviteTTL)

	user := domain.User{
		ID:                 uuid.NewString(),
		Email:              email,
		Username:           username,
		FirstName:          strings.TrimSpace(params.FirstName),
		LastName:           strings.TrimSpace(params.LastName),
		Address:            strings.TrimSpace(params.Address),
		PasswordHash:       passwordHash,
		Activated:          false,
		InviteTokenHash:    &inviteHash,
		InviteTokenExpires: &inviteExpires,
		CreatedAt:          now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrDuplicateAccount
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	// The account is usable for activation even if the invite mail bounces;
	// operators can re-issue the invite, so delivery failure is not fatal.
	activationSent := true
	if err := s.sendInviteEmail(ctx, user, rawInvite); err != nil {
		activationSent = false
		s.logger.Warn("activation email failed",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}

	s.publishUserCreated(ctx, user, activationSent)

	return user, nil
}

// UpdateUser overwrites the mutable profile fields. The password is always
// re-hashed and replaced together with the other fields.
func (s *CredentialService) UpdateUser(ctx context.Context, id string, update domain.ProfileUpdate) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, fmt.Errorf("user id is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	email := strings.TrimSpace(update.Email)
	username := strings.TrimSpace(update.Username)
	password := strings.TrimSpace(update.Password)
	if email == "" {
		return domain.User{}, fmt.Errorf("email is required")
	}
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	if password == "" {
		return domain.User{}, fmt.Errorf("password is required")
	}

	if err := s.passwordValidator.Validate(password, email, username); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	firstName := strings.TrimSpace(update.FirstName)
	lastName := strings.TrimSpace(update.LastName)
	address := strings.TrimSpace(update.Address)

	if err := s.users.UpdateProfile(ctx, id, email, username, passwordHash, firstName, lastName, address); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.User{}, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return domain.User{}, ErrDuplicateAccount
		}
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	s.publishPasswordChanged(ctx, user.ID, changedByProfile)

	updated := *user
	updated.Email = email
	updated.Username = username
	updated.PasswordHash = passwordHash
	updated.FirstName = firstName
	updated.LastName = lastName
	updated.Address = address

	return updated, nil
}

// Authenticate verifies the username and password and returns the account.
// Unknown accounts, inactive accounts, and wrong passwords all surface as
// ErrInvalidCredentials so responses give no account oracle. Minting the
// session token is the caller's step, via GenerateSessionToken.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errUnknownOrInactiveAccount
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUnknownOrInactiveAccount
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.Activated {
		return nil, errUnknownOrInactiveAccount
	}

	matches, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !matches {
		return nil, errPasswordMismatch
	}

	return user, nil
}

// ResendInvite issues a fresh invite token for an account that has not been
// activated yet and mails a new activation link. The previous invite token
// stops matching once the stored hash is overwritten.
func (s *CredentialService) ResendInvite(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrUserNotFound
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.Activated {
		return ErrAlreadyActivated
	}

	raw, err := security.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate invite token: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.SetInviteToken(ctx, user.ID, security.HashToken(raw), now.Add(s.inviteTTL)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store invite token: %w", err)
	}

	if err := s.sendInviteEmail(ctx, *user, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}

	return nil
}

// SendResetPasswordEmail issues a reset token for an activated account and
// mails the reset link. Issuing a new token invalidates any earlier one
// because the stored hash is overwritten.
func (s *CredentialService) SendResetPasswordEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if !user.Activated {
		return ErrUserNotFound
	}

	raw, err := security.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, security.HashToken(raw), expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.sendResetEmail(ctx, *user, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}

	s.publishResetRequested(ctx, *user, now, expiresAt)

	return nil
}

// ResetPassword consumes a reset token and installs the new password. The
// token comparison, expiry check, and clear happen in one conditional write,
// so concurrent submissions of the same token cannot both succeed.
func (s *CredentialService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.consumeToken(ctx, token, newPassword, s.users.ConsumeResetToken)
	if err != nil {
		return err
	}

	s.publishPasswordChanged(ctx, user.ID, changedByReset)
	return nil
}

// SetPassword consumes an invite token, installs the chosen password, and
// activates the account in the same write.
func (s *CredentialService) SetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.consumeToken(ctx, token, newPassword, s.users.ConsumeInviteToken)
	if err != nil {
		return err
	}

	s.publishAccountActivated(ctx, user.ID)
	s.publishPasswordChanged(ctx, user.ID, changedByActivation)
	return nil
}

type tokenConsumer func(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error)

func (s *CredentialService) consumeToken(ctx context.Context, token, newPassword string, consume tokenConsumer) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return nil, fmt.Errorf("new password is required")
	}

	if err := s.passwordValidator.Validate(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	user, err := consume(ctx, security.HashToken(token), passwordHash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}

	return user, nil
}

// GenerateSessionToken mints a session token for an already-authenticated user.
func (s *CredentialService) GenerateSessionToken(userID string) (string, error) {
	token, err := s.sessions.Generate(userID)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return token, nil
}

// ValidateSessionToken verifies a session token and returns the user ID it
// was minted for. All failure modes collapse into ErrInvalidSessionToken.
func (s *CredentialService) ValidateSessionToken(token string) (string, error) {
	userID, err := s.sessions.Validate(token)
	if err != nil {
		return "", ErrInvalidSessionToken
	}
	return userID, nil
}

type mailData struct {
	FirstName string
	LastName  string
	Link      string
	TTL       string
}

func (s *CredentialService) sendInviteEmail(ctx context.Context, user domain.User, rawToken string) error {
	link := fmt.Sprintf("%s/set-password?token=%s", s.baseURL, url.QueryEscape(rawToken))
	return s.sendMail(ctx, user, activationSubject, activationEmailTmpl, mailData{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Link:      link,
		TTL:       s.inviteTTL.String(),
	})
}

func (s *CredentialService) sendResetEmail(ctx context.Context, user domain.User, rawToken string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(rawToken))
	return s.sendMail(ctx, user, resetSubject, resetEmailTmpl, mailData{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Link:      link,
		TTL:       s.resetTTL.String(),
	})
}

func (s *CredentialService) sendMail(ctx context.Context, user domain.User, subject string, tmpl *template.Template, data mailData) error {
	if s.notifier == nil {
		return fmt.Errorf("notification sender not configured")
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	return s.notifier.Send(ctx, port.Email{
		To:      user.Email,
		Subject: subject,
		HTML:    body.String(),
	})
}

func (s *CredentialService) publishUserCreated(ctx context.Context, user domain.User, activationSent bool) {
	if s.events == nil {
		return
	}
	event := domain.UserCreatedEvent{
		EventID:        uuid.NewString(),
		UserID:         user.ID,
		Username:       user.Username,
		Email:          logger.MaskEmail(user.Email),
		CreatedAt:      user.CreatedAt,
		ActivationSent: activationSent,
	}
	if err := s.events.PublishUserCreated(ctx, event); err != nil {
		s.logger.Warn("publish user created failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *CredentialService) publishPasswordChanged(ctx context.Context, userID, changedBy string) {
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: s.now().UTC(),
		ChangedBy: changedBy,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CredentialService) publishResetRequested(ctx context.Context, user domain.User, at, expiresAt time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PasswordResetRequestedEvent{
		EventID:           uuid.NewString(),
		UserID:            user.ID,
		RequestedAt:       at,
		MaskedDestination: logger.MaskEmail(user.Email),
		ExpiresAt:         expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish reset requested failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *CredentialService) publishAccountActivated(ctx context.Context, userID string) {
	if s.events == nil {
		return
	}
	event := domain.AccountActivatedEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		ActivatedAt: s.now().UTC(),
	}
	if err := s.events.PublishAccountActivated(ctx, event); err != nil {
		s.logger.Warn("publish account activated failed", zap.String("user_id", userID), zap.Error(err))
	}
}
