package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/infra/security"
	"github.com/ledgerline/portal-iam/internal/repository"
)

const testBaseURL = "https://portal.example.com"

type mockUserStore struct {
	createErr   error
	createCalls int
	createdUser domain.User

	getByIDResult *domain.User
	getByIDErr    error

	getByUsernameResult *domain.User
	getByUsernameErr    error
	getByUsernameLast   string

	getByEmailResult *domain.User
	getByEmailErr    error

	getByEmailOrUsernameResult *domain.User
	getByEmailOrUsernameErr    error

	updateProfileErr      error
	updateProfileCalls    int
	updateProfileUsername string
	updateProfileHash     string

	setInviteTokenErr     error
	setInviteTokenCalls   int
	setInviteTokenHash    string
	setInviteTokenExpires time.Time

	setResetTokenErr     error
	setResetTokenCalls   int
	setResetTokenHash    string
	setResetTokenExpires time.Time

	consumeInviteResult *domain.User
	consumeInviteErr    error
	consumeInviteCalls  int
	consumeInviteHash   string
	consumeInvitePwHash string
	consumeInviteNow    time.Time

	consumeResetResult *domain.User
	consumeResetErr    error
	consumeResetCalls  int
	consumeResetHash   string
	consumeResetFn     func(tokenHash string) (*domain.User, error)
}

func (m *mockUserStore) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	m.createdUser = user
	return m.createErr
}

func (m *mockUserStore) GetByID(context.Context, string) (*domain.User, error) {
	if m.getByIDResult != nil {
		copied := *m.getByIDResult
		return &copied, m.getByIDErr
	}
	return nil, m.getByIDErr
}

func (m *mockUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.getByUsernameLast = username
	if m.getByUsernameResult != nil {
		copied := *m.getByUsernameResult
		return &copied, m.getByUsernameErr
	}
	return nil, m.getByUsernameErr
}

func (m *mockUserStore) GetByEmail(context.Context, string) (*domain.User, error) {
	if m.getByEmailResult != nil {
		copied := *m.getByEmailResult
		return &copied, m.getByEmailErr
	}
	return nil, m.getByEmailErr
}

func (m *mockUserStore) GetByEmailOrUsername(context.Context, string, string) (*domain.User, error) {
	if m.getByEmailOrUsernameResult != nil {
		copied := *m.getByEmailOrUsernameResult
		return &copied, m.getByEmailOrUsernameErr
	}
	return nil, m.getByEmailOrUsernameErr
}

func (m *mockUserStore) UpdateProfile(_ context.Context, _ string, _, username, passwordHash, _, _, _ string) error {
	m.updateProfileCalls++
	m.updateProfileUsername = username
	m.updateProfileHash = passwordHash
	return m.updateProfileErr
}

func (m *mockUserStore) SetInviteToken(_ context.Context, _ string, tokenHash string, expiresAt time.Time) error {
	m.setInviteTokenCalls++
	m.setInviteTokenHash = tokenHash
	m.setInviteTokenExpires = expiresAt
	return m.setInviteTokenErr
}

func (m *mockUserStore) SetResetToken(_ context.Context, _ string, tokenHash string, expiresAt time.Time) error {
	m.setResetTokenCalls++
	m.setResetTokenHash = tokenHash
	m.setResetTokenExpires = expiresAt
	return m.setResetTokenErr
}

func (m *mockUserStore) ConsumeInviteToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	m.consumeInviteCalls++
	m.consumeInviteHash = tokenHash
	m.consumeInvitePwHash = passwordHash
	m.consumeInviteNow = now
	if m.consumeInviteResult != nil {
		copied := *m.consumeInviteResult
		return &copied, m.consumeInviteErr
	}
	return nil, m.consumeInviteErr
}

func (m *mockUserStore) ConsumeResetToken(_ context.Context, tokenHash, _ string, _ time.Time) (*domain.User, error) {
	m.consumeResetCalls++
	m.consumeResetHash = tokenHash
	if m.consumeResetFn != nil {
		return m.consumeResetFn(tokenHash)
	}
	if m.consumeResetResult != nil {
		copied := *m.consumeResetResult
		return &copied, m.consumeResetErr
	}
	return nil, m.consumeResetErr
}

type mockHasher struct {
	hashErr     error
	verifyMatch bool
	verifyErr   error
	lastHashed  string
}

func (m *mockHasher) Hash(password string) (string, error) {
	m.lastHashed = password
	if m.hashErr != nil {
		return "", m.hashErr
	}
	return "hashed:" + password, nil
}

func (m *mockHasher) Verify(password, hash string) (bool, error) {
	if m.verifyErr != nil {
		return false, m.verifyErr
	}
	if m.verifyMatch {
		return hash == "hashed:"+password, nil
	}
	return false, nil
}

type mockTokenCodec struct {
	generateErr    error
	generateCalls  int
	generateUserID string

	validateResult string
	validateErr    error
}

func (m *mockTokenCodec) Generate(userID string) (string, error) {
	m.generateCalls++
	m.generateUserID = userID
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return "session-token-for-" + userID, nil
}

func (m *mockTokenCodec) Validate(string) (string, error) {
	if m.validateErr != nil {
		return "", m.validateErr
	}
	return m.validateResult, nil
}

type mockNotifier struct {
	sendErr   error
	sendCalls int
	lastEmail port.Email
}

func (m *mockNotifier) Send(_ context.Context, msg port.Email) error {
	m.sendCalls++
	m.lastEmail = msg
	return m.sendErr
}

type mockEventPublisher struct {
	userCreated      []domain.UserCreatedEvent
	passwordChanged  []domain.PasswordChangedEvent
	resetRequested   []domain.PasswordResetRequestedEvent
	accountActivated []domain.AccountActivatedEvent
}

func (m *mockEventPublisher) PublishUserCreated(_ context.Context, e domain.UserCreatedEvent) error {
	m.userCreated = append(m.userCreated, e)
	return nil
}

func (m *mockEventPublisher) PublishPasswordChanged(_ context.Context, e domain.PasswordChangedEvent) error {
	m.passwordChanged = append(m.passwordChanged, e)
	return nil
}

func (m *mockEventPublisher) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	m.resetRequested = append(m.resetRequested, e)
	return nil
}

func (m *mockEventPublisher) PublishAccountActivated(_ context.Context, e domain.AccountActivatedEvent) error {
	m.accountActivated = append(m.accountActivated, e)
	return nil
}

type credentialFixture struct {
	users    *mockUserStore
	hasher   *mockHasher
	codec    *mockTokenCodec
	notifier *mockNotifier
	events   *mockEventPublisher
	service  *CredentialService
}

func newCredentialFixture() *credentialFixture {
	f := &credentialFixture{
		users:    &mockUserStore{},
		hasher:   &mockHasher{verifyMatch: true},
		codec:    &mockTokenCodec{},
		notifier: &mockNotifier{},
		events:   &mockEventPublisher{},
	}
	f.service = NewCredentialService(f.users, f.hasher, f.codec, f.notifier, f.events, nil, testBaseURL, nil)
	return f
}

func tokenFromLink(t *testing.T, html, path string) string {
	t.Helper()
	marker := fmt.Sprintf(`href="%s%s?token=`, testBaseURL, path)
	idx := strings.Index(html, marker)
	if idx < 0 {
		t.Fatalf("email body missing %s link: %s", path, html)
	}
	rest := html[idx+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		t.Fatalf("unterminated link in email body: %s", html)
	}
	raw, err := url.QueryUnescape(rest[:end])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return raw
}

func TestCreateUserProvisionsInactiveAccount(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailOrUsernameErr = repository.ErrNotFound

	created, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:     "dana@example.com",
		Username:  "dana",
		Password:  "opensesame1",
		FirstName: "Dana",
		LastName:  "Oliver",
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	stored := f.users.createdUser
	if stored.Activated {
		t.Fatal("expected new account to be inactive")
	}
	if stored.PasswordHash == "opensesame1" || !strings.HasPrefix(stored.PasswordHash, "hashed:") {
		t.Fatalf("password stored without hashing: %q", stored.PasswordHash)
	}
	if stored.InviteTokenHash == nil || stored.InviteTokenExpires == nil {
		t.Fatal("expected invite token hash and expiry to be set")
	}
	if created.ID == "" || created.ID != stored.ID {
		t.Fatalf("returned user does not match stored user: %q vs %q", created.ID, stored.ID)
	}

	if f.notifier.sendCalls != 1 {
		t.Fatalf("expected one invite email, got %d", f.notifier.sendCalls)
	}
	if f.notifier.lastEmail.Subject != "Activate your account" {
		t.Fatalf("unexpected invite subject: %q", f.notifier.lastEmail.Subject)
	}

	raw := tokenFromLink(t, f.notifier.lastEmail.HTML, "/set-password")
	if security.HashToken(raw) != *stored.InviteTokenHash {
		t.Fatal("stored invite hash does not match the mailed token")
	}
	if len(f.events.userCreated) != 1 {
		t.Fatalf("expected one user created event, got %d", len(f.events.userCreated))
	}
	if !f.events.userCreated[0].ActivationSent {
		t.Fatal("expected activation_sent to be true")
	}
}

func TestCreateUserEscapesTemplateInjection(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailOrUsernameErr = repository.ErrNotFound

	_, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:     "eve@example.com",
		Username:  "eve",
		Password:  "opensesame1",
		FirstName: "<%= 7*7 %>",
		LastName:  `<script>alert("x")</script>`,
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	body := f.notifier.lastEmail.HTML
	if strings.Contains(body, "<%= 7*7 %>") || strings.Contains(body, "<script>") {
		t.Fatalf("user input rendered unescaped: %s", body)
	}
	if !strings.Contains(body, "&lt;%= 7*7 %&gt;") {
		t.Fatalf("expected escaped first name in body: %s", body)
	}
}

func TestCreateUserDuplicatePreCheck(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailOrUsernameResult = &domain.User{ID: "existing"}

	_, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:    "dana@example.com",
		Username: "dana",
		Password: "opensesame1",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if f.users.createCalls != 0 {
		t.Fatal("expected Create not to be called")
	}
}

func TestCreateUserDuplicateFromConstraint(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailOrUsernameErr = repository.ErrNotFound
	f.users.createErr = repository.ErrDuplicate

	_, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:    "dana@example.com",
		Username: "dana",
		Password: "opensesame1",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestCreateUserSurvivesMailFailure(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailOrUsernameErr = repository.ErrNotFound
	f.notifier.sendErr = errors.New("smtp: connection refused")

	_, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:    "dana@example.com",
		Username: "dana",
		Password: "opensesame1",
	})
	if err != nil {
		t.Fatalf("expected creation to succeed despite mail failure, got %v", err)
	}
	if f.users.createCalls != 1 {
		t.Fatalf("expected user to be created, got %d calls", f.users.createCalls)
	}
	if len(f.events.userCreated) != 1 || f.events.userCreated[0].ActivationSent {
		t.Fatal("expected user created event with activation_sent=false")
	}
}

func TestCreateUserRejectsWeakPassword(t *testing.T) {
	f := newCredentialFixture()
	validator := security.NewPasswordValidator(0, security.MinLengthRule(12))
	f.service = NewCredentialService(f.users, f.hasher, f.codec, f.notifier, f.events, validator, testBaseURL, nil)

	_, err := f.service.CreateUser(context.Background(), domain.NewUserParams{
		Email:    "dana@example.com",
		Username: "dana",
		Password: "short1",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if f.users.createCalls != 0 {
		t.Fatal("expected no user to be created")
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByUsernameResult = &domain.User{
		ID:           "user-1",
		Username:     "dana",
		PasswordHash: "hashed:opensesame1",
		Activated:    true,
	}

	user, err := f.service.Authenticate(context.Background(), "dana", "opensesame1")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if f.codec.generateCalls != 0 {
		t.Fatal("Authenticate must not mint a session token itself")
	}

	token, err := f.service.GenerateSessionToken(user.ID)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if token != "session-token-for-user-1" {
		t.Fatalf("unexpected token: %q", token)
	}
	if f.codec.generateUserID != "user-1" {
		t.Fatalf("token minted for wrong user: %q", f.codec.generateUserID)
	}
}

func TestAuthenticateFailuresCollapse(t *testing.T) {
	active := &domain.User{
		ID:           "user-1",
		Username:     "dana",
		PasswordHash: "hashed:opensesame1",
		Activated:    true,
	}
	inactive := *active
	inactive.Activated = false

	cases := []struct {
		name     string
		user     *domain.User
		getErr   error
		password string
	}{
		{name: "unknown user", getErr: repository.ErrNotFound, password: "opensesame1"},
		{name: "inactive account", user: &inactive, password: "opensesame1"},
		{name: "wrong password", user: active, password: "not-the-password"},
		{name: "empty password", user: active, password: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCredentialFixture()
			f.users.getByUsernameResult = tc.user
			f.users.getByUsernameErr = tc.getErr

			_, err := f.service.Authenticate(context.Background(), "dana", tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if f.codec.generateCalls != 0 {
				t.Fatal("no session token should be minted on failure")
			}
		})
	}
}

func TestResendInviteReplacesToken(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByIDResult = &domain.User{
		ID:        "user-1",
		Email:     "dana@example.com",
		FirstName: "Dana",
		Activated: false,
	}

	issuedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return issuedAt })

	if err := f.service.ResendInvite(context.Background(), "user-1"); err != nil {
		t.Fatalf("ResendInvite returned error: %v", err)
	}

	if f.users.setInviteTokenCalls != 1 {
		t.Fatalf("expected invite token to be stored once, got %d", f.users.setInviteTokenCalls)
	}
	if f.notifier.sendCalls != 1 || f.notifier.lastEmail.Subject != "Activate your account" {
		t.Fatalf("expected one activation email, got %d (%q)", f.notifier.sendCalls, f.notifier.lastEmail.Subject)
	}

	raw := tokenFromLink(t, f.notifier.lastEmail.HTML, "/set-password")
	if security.HashToken(raw) != f.users.setInviteTokenHash {
		t.Fatal("stored invite hash does not match the mailed token")
	}
	if got, want := f.users.setInviteTokenExpires, issuedAt.Add(24*time.Hour); !got.Equal(want) {
		t.Fatalf("unexpected invite expiry: got %v want %v", got, want)
	}
}

func TestResendInviteRejectsActivatedAccount(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByIDResult = &domain.User{ID: "user-1", Email: "dana@example.com", Activated: true}

	err := f.service.ResendInvite(context.Background(), "user-1")
	if !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated, got %v", err)
	}
	if f.users.setInviteTokenCalls != 0 {
		t.Fatal("no token should be issued for an activated account")
	}
	if f.notifier.sendCalls != 0 {
		t.Fatal("no email should be sent")
	}
}

func TestResendInviteUnknownUser(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByIDErr = repository.ErrNotFound

	err := f.service.ResendInvite(context.Background(), "missing")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendResetPasswordEmailStoresHashedToken(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailResult = &domain.User{
		ID:        "user-1",
		Email:     "dana@example.com",
		FirstName: "Dana",
		Activated: true,
	}

	issuedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return issuedAt })

	if err := f.service.SendResetPasswordEmail(context.Background(), "dana@example.com"); err != nil {
		t.Fatalf("SendResetPasswordEmail returned error: %v", err)
	}

	if f.users.setResetTokenCalls != 1 {
		t.Fatalf("expected reset token to be stored once, got %d", f.users.setResetTokenCalls)
	}
	if f.notifier.lastEmail.Subject != "Your password reset link" {
		t.Fatalf("unexpected reset subject: %q", f.notifier.lastEmail.Subject)
	}

	raw := tokenFromLink(t, f.notifier.lastEmail.HTML, "/reset-password")
	if raw == f.users.setResetTokenHash {
		t.Fatal("raw token must not be stored directly")
	}
	if security.HashToken(raw) != f.users.setResetTokenHash {
		t.Fatal("stored reset hash does not match the mailed token")
	}
	if got, want := f.users.setResetTokenExpires, issuedAt.Add(time.Hour); !got.Equal(want) {
		t.Fatalf("unexpected reset expiry: got %v want %v", got, want)
	}
	if len(f.events.resetRequested) != 1 {
		t.Fatalf("expected one reset requested event, got %d", len(f.events.resetRequested))
	}
}

func TestSendResetPasswordEmailHidesInactiveAccounts(t *testing.T) {
	inactive := &domain.User{ID: "user-1", Email: "dana@example.com", Activated: false}

	cases := []struct {
		name   string
		user   *domain.User
		getErr error
	}{
		{name: "unknown email", getErr: repository.ErrNotFound},
		{name: "inactive account", user: inactive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newCredentialFixture()
			f.users.getByEmailResult = tc.user
			f.users.getByEmailErr = tc.getErr

			err := f.service.SendResetPasswordEmail(context.Background(), "dana@example.com")
			if !errors.Is(err, ErrUserNotFound) {
				t.Fatalf("expected ErrUserNotFound, got %v", err)
			}
			if f.users.setResetTokenCalls != 0 {
				t.Fatal("no token should be issued")
			}
			if f.notifier.sendCalls != 0 {
				t.Fatal("no email should be sent")
			}
		})
	}
}

func TestSendResetPasswordEmailDeliveryFailureIsFatal(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailResult = &domain.User{ID: "user-1", Email: "dana@example.com", Activated: true}
	f.notifier.sendErr = errors.New("smtp: connection refused")

	err := f.service.SendResetPasswordEmail(context.Background(), "dana@example.com")
	if !errors.Is(err, ErrDeliveryFailure) {
		t.Fatalf("expected ErrDeliveryFailure, got %v", err)
	}
}

func TestSecondResetTokenInvalidatesFirst(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByEmailResult = &domain.User{ID: "user-1", Email: "dana@example.com", Activated: true}

	if err := f.service.SendResetPasswordEmail(context.Background(), "dana@example.com"); err != nil {
		t.Fatalf("first SendResetPasswordEmail returned error: %v", err)
	}
	first := tokenFromLink(t, f.notifier.lastEmail.HTML, "/reset-password")

	if err := f.service.SendResetPasswordEmail(context.Background(), "dana@example.com"); err != nil {
		t.Fatalf("second SendResetPasswordEmail returned error: %v", err)
	}
	second := tokenFromLink(t, f.notifier.lastEmail.HTML, "/reset-password")

	if f.users.setResetTokenCalls != 2 {
		t.Fatalf("expected two token writes, got %d", f.users.setResetTokenCalls)
	}
	if security.HashToken(first) == f.users.setResetTokenHash {
		t.Fatal("first token hash must be overwritten by the second issue")
	}
	if security.HashToken(second) != f.users.setResetTokenHash {
		t.Fatal("stored hash must match the second token")
	}

	// The store only ever holds the latest hash, so consumption matches the
	// second token and nothing else.
	f.users.consumeResetFn = func(tokenHash string) (*domain.User, error) {
		if tokenHash == f.users.setResetTokenHash {
			return &domain.User{ID: "user-1", Activated: true}, nil
		}
		return nil, repository.ErrNotFound
	}

	if err := f.service.ResetPassword(context.Background(), first, "newpassword1"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected first token to be dead, got %v", err)
	}
	if err := f.service.ResetPassword(context.Background(), second, "newpassword1"); err != nil {
		t.Fatalf("second token should still work, got %v", err)
	}
}

func TestResetPasswordConsumesToken(t *testing.T) {
	f := newCredentialFixture()
	f.users.consumeResetResult = &domain.User{ID: "user-1", Activated: true}

	if err := f.service.ResetPassword(context.Background(), "raw-reset-token", "newpassword1"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	if f.users.consumeResetCalls != 1 {
		t.Fatalf("expected one consume call, got %d", f.users.consumeResetCalls)
	}
	if f.users.consumeResetHash != security.HashToken("raw-reset-token") {
		t.Fatal("token must be hashed before lookup")
	}
	if len(f.events.passwordChanged) != 1 || f.events.passwordChanged[0].ChangedBy != "password_reset" {
		t.Fatalf("expected password changed event from reset, got %+v", f.events.passwordChanged)
	}
}

func TestResetPasswordRejectsDeadTokens(t *testing.T) {
	f := newCredentialFixture()
	f.users.consumeResetErr = repository.ErrNotFound

	err := f.service.ResetPassword(context.Background(), "stale-token", "newpassword1")
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
	if len(f.events.passwordChanged) != 0 {
		t.Fatal("no event should be published for a dead token")
	}
}

func TestSetPasswordActivatesAccount(t *testing.T) {
	f := newCredentialFixture()
	f.users.consumeInviteResult = &domain.User{ID: "user-1", Activated: true}

	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	f.service.WithClock(func() time.Time { return fixed })

	if err := f.service.SetPassword(context.Background(), "raw-invite-token", "chosenpassword1"); err != nil {
		t.Fatalf("SetPassword returned error: %v", err)
	}

	if f.users.consumeInviteCalls != 1 {
		t.Fatalf("expected one consume call, got %d", f.users.consumeInviteCalls)
	}
	if f.users.consumeInviteHash != security.HashToken("raw-invite-token") {
		t.Fatal("token must be hashed before lookup")
	}
	if f.users.consumeInvitePwHash != "hashed:chosenpassword1" {
		t.Fatalf("unexpected stored password hash: %q", f.users.consumeInvitePwHash)
	}
	if !f.users.consumeInviteNow.Equal(fixed) {
		t.Fatalf("expected injected clock to drive expiry check, got %v", f.users.consumeInviteNow)
	}

	if len(f.events.accountActivated) != 1 {
		t.Fatalf("expected account activated event, got %d", len(f.events.accountActivated))
	}
	if len(f.events.passwordChanged) != 1 || f.events.passwordChanged[0].ChangedBy != "account_activation" {
		t.Fatalf("expected password changed event from activation, got %+v", f.events.passwordChanged)
	}
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByIDResult = &domain.User{ID: "user-1", Username: "dana", Email: "old@example.com", Activated: true}

	updated, err := f.service.UpdateUser(context.Background(), "user-1", domain.ProfileUpdate{
		Email:     "new@example.com",
		Username:  "dana-renamed",
		Password:  "freshpassword1",
		FirstName: "Dana",
	})
	if err != nil {
		t.Fatalf("UpdateUser returned error: %v", err)
	}

	if f.users.updateProfileCalls != 1 {
		t.Fatalf("expected one profile update, got %d", f.users.updateProfileCalls)
	}
	if f.users.updateProfileUsername != "dana-renamed" {
		t.Fatalf("username not forwarded to the store: %q", f.users.updateProfileUsername)
	}
	if f.users.updateProfileHash != "hashed:freshpassword1" {
		t.Fatalf("password not rehashed: %q", f.users.updateProfileHash)
	}
	if updated.Email != "new@example.com" {
		t.Fatalf("unexpected updated email: %q", updated.Email)
	}
	if updated.Username != "dana-renamed" {
		t.Fatalf("unexpected updated username: %q", updated.Username)
	}
	if len(f.events.passwordChanged) != 1 || f.events.passwordChanged[0].ChangedBy != "profile_update" {
		t.Fatalf("expected password changed event from profile update, got %+v", f.events.passwordChanged)
	}
}

func TestUpdateUserUnknownID(t *testing.T) {
	f := newCredentialFixture()
	f.users.getByIDErr = repository.ErrNotFound

	_, err := f.service.UpdateUser(context.Background(), "missing", domain.ProfileUpdate{
		Email:    "new@example.com",
		Password: "freshpassword1",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestValidateSessionTokenCollapsesFailures(t *testing.T) {
	f := newCredentialFixture()
	f.codec.validateErr = errors.New("token is expired")

	_, err := f.service.ValidateSessionToken("whatever")
	if !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}

	f.codec.validateErr = nil
	f.codec.validateResult = "user-1"
	userID, err := f.service.ValidateSessionToken("good-token")
	if err != nil {
		t.Fatalf("ValidateSessionToken returned error: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
}
