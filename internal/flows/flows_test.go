package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/fastauth/internal/validate"
	"github.com/MrEthical07/fastauth/jwt"
	"github.com/MrEthical07/fastauth/password"
	"github.com/MrEthical07/fastauth/refresh"
	"github.com/MrEthical07/fastauth/store"
	"github.com/MrEthical07/fastauth/store/memstore"
)

var (
	errNotReady      = errors.New("not ready")
	errEmailTaken    = errors.New("email taken")
	errUsernameTaken = errors.New("username taken")
	errInvalidCreds  = errors.New("invalid credentials")
	errReuse         = errors.New("password reuse")
	errUserNotFound  = errors.New("user not found")
	errTokenInvalid  = errors.New("refresh token invalid")
)

type validationErr struct{ fields []validate.FieldError }

func (v *validationErr) Error() string { return "validation" }

type auditRecord struct {
	eventType string
	success   bool
	userID    string
	tokenID   string
	err       error
}

type recorder struct {
	mu      sync.Mutex
	metrics map[int]int
	events  []auditRecord
}

func newRecorder() *recorder {
	return &recorder{metrics: map[int]int{}}
}

func (r *recorder) inc(id int) {
	r.mu.Lock()
	r.metrics[id]++
	r.mu.Unlock()
}

func (r *recorder) audit(_ context.Context, eventType string, success bool, userID, tokenID string, err error, _ func() map[string]string) {
	r.mu.Lock()
	r.events = append(r.events, auditRecord{eventType, success, userID, tokenID, err})
	r.mu.Unlock()
}

func (r *recorder) last() auditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auditRecord{}
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	store   *memstore.Store
	hasher  password.Hasher
	manager *jwt.Manager
	rec     *recorder
	deps    Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(strings.Repeat("k", 32)),
		Issuer:        "flows-test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	f := &fixture{store: memstore.New(), hasher: hasher, manager: manager, rec: newRecorder()}
	policy := password.DefaultPolicy()
	newValidation := func(fields []validate.FieldError) error { return &validationErr{fields: fields} }
	dummy, _ := hasher.Hash("dummy-Password-1")

	issue := IssueDeps{
		RefreshEnabled:   true,
		RefreshTTL:       time.Hour,
		CreateAccess:     manager.CreateAccess,
		NewRefreshToken:  refresh.New,
		SaveRefreshToken: f.store.SaveRefreshToken,
	}
	f.deps = Deps{
		Issue: issue,
		Register: RegisterDeps{
			NewUserID:                uuid.NewString,
			CheckPolicy:              policy.Check,
			HashPassword:             hasher.Hash,
			NewValidationError:       newValidation,
			UserByNormalizedEmail:    f.store.UserByNormalizedEmail,
			UserByNormalizedUsername: f.store.UserByNormalizedUsername,
			CreateUser:               f.store.CreateUser,
			Issue:                    issue,
			MetricInc:                f.rec.inc,
			EmitAudit:                f.rec.audit,
			Metrics:                  RegisterMetrics{RegisterSuccess: 1, RegisterDuplicate: 2, RegisterFailure: 3},
			Events:                   RegisterEvents{RegisterSuccess: "register_success", RegisterFailure: "register_failure", RegisterDuplicate: "register_duplicate"},
			Errors:                   RegisterErrors{EngineNotReady: errNotReady, EmailTaken: errEmailTaken, UsernameTaken: errUsernameTaken},
		},
		Login: LoginDeps{
			AllowUsernameLogin:       true,
			UpgradeOnLogin:           true,
			DummyHash:                dummy,
			VerifyPassword:           hasher.Verify,
			NeedsUpgrade:             hasher.NeedsUpgrade,
			HashPassword:             hasher.Hash,
			NewValidationError:       newValidation,
			UserByNormalizedEmail:    f.store.UserByNormalizedEmail,
			UserByNormalizedUsername: f.store.UserByNormalizedUsername,
			UpdatePasswordHash:       f.store.UpdatePasswordHash,
			Issue:                    issue,
			MetricInc:                f.rec.inc,
			EmitAudit:                f.rec.audit,
			Metrics:                  LoginMetrics{LoginSuccess: 10, LoginFailure: 11, PasswordUpgraded: 12},
			Events:                   LoginEvents{LoginSuccess: "login_success", LoginFailure: "login_failure", PasswordUpgraded: "upgraded"},
			Errors:                   LoginErrors{EngineNotReady: errNotReady, InvalidCredentials: errInvalidCreds},
		},
		Refresh: RefreshDeps{
			Enabled:             true,
			TokenID:             refresh.ID,
			ConsumeRefreshToken: f.store.ConsumeRefreshToken,
			UserByID:            f.store.UserByID,
			Issue:               issue,
		},
		Logout: LogoutDeps{
			TokenID:                 refresh.ID,
			DeleteRefreshToken:      f.store.DeleteRefreshToken,
			DeleteUserRefreshTokens: f.store.DeleteUserRefreshTokens,
			MetricInc:               f.rec.inc,
			EmitAudit:               f.rec.audit,
			Metrics:                 LogoutMetrics{Logout: 20, LogoutAll: 21},
			Events:                  LogoutEvents{Logout: "logout", LogoutAll: "logout_all"},
			Errors:                  LogoutErrors{EngineNotReady: errNotReady, RefreshTokenInvalid: errTokenInvalid, UserNotFound: errUserNotFound},
		},
		Validate: ValidateDeps{ParseAccess: manager.ParseAccess},
		ChangePassword: ChangePasswordDeps{
			CheckPolicy:             policy.Check,
			VerifyPassword:          hasher.Verify,
			HashPassword:            hasher.Hash,
			NewValidationError:      newValidation,
			UserByID:                f.store.UserByID,
			UpdatePasswordHash:      f.store.UpdatePasswordHash,
			DeleteUserRefreshTokens: f.store.DeleteUserRefreshTokens,
			MetricInc:               f.rec.inc,
			EmitAudit:               f.rec.audit,
			Metrics:                 ChangePasswordMetrics{Success: 30, InvalidCurrent: 31, ReuseRejected: 32, Failure: 33},
			Events:                  ChangePasswordEvents{Success: "pw_success", InvalidCurrent: "pw_invalid", Reuse: "pw_reuse", Failure: "pw_failure"},
			Errors:                  ChangePasswordErrors{EngineNotReady: errNotReady, UserNotFound: errUserNotFound, InvalidCredentials: errInvalidCreds, PasswordReuse: errReuse},
		},
	}
	return f
}

func (f *fixture) register(t *testing.T, email, username, pw string) *Issued {
	t.Helper()
	issued, err := RunRegister(context.Background(), RegisterRequest{Email: email, Username: username, Password: pw}, f.deps.Register)
	if err != nil {
		t.Fatalf("RunRegister: %v", err)
	}
	return issued
}

func TestRunRegisterIssuesTokens(t *testing.T) {
	f := newFixture(t)
	issued := f.register(t, "  Alice@Example.com ", "alice", "Secret-Pass-1")

	if issued.User.Email != "Alice@Example.com" || issued.User.NormalizedEmail != "ALICE@EXAMPLE.COM" {
		t.Fatalf("unexpected email fields: %+v", issued.User)
	}
	if issued.User.PasswordHash == "Secret-Pass-1" || issued.User.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if issued.AccessToken == "" || issued.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	claims, err := f.manager.ParseAccess(issued.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != issued.User.ID || claims.Email != "Alice@Example.com" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if f.rec.metrics[1] != 1 {
		t.Fatalf("register success metric = %d, want 1", f.rec.metrics[1])
	}
	if ev := f.rec.last(); ev.eventType != "register_success" || ev.tokenID != issued.RefreshTokenID {
		t.Fatalf("unexpected audit event: %+v", ev)
	}
}

func TestRunRegisterValidation(t *testing.T) {
	f := newFixture(t)
	f.deps.Register.RequireUsername = true

	_, err := RunRegister(context.Background(), RegisterRequest{Email: "not-an-email", Password: "short"}, f.deps.Register)
	var verr *validationErr
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	fields := map[string]bool{}
	for _, fe := range verr.fields {
		fields[fe.Field] = true
	}
	for _, want := range []string{"email", "username", "password"} {
		if !fields[want] {
			t.Fatalf("missing field error for %q: %+v", want, verr.fields)
		}
	}
	if ev := f.rec.last(); ev.eventType != "register_failure" || ev.err != err {
		t.Fatalf("audit event = %+v, want register_failure carrying the validation error", ev)
	}
}

func TestRunRegisterDuplicates(t *testing.T) {
	f := newFixture(t)
	f.register(t, "bob@example.com", "bob", "Secret-Pass-1")

	_, err := RunRegister(context.Background(), RegisterRequest{Email: "BOB@example.com", Username: "other", Password: "Secret-Pass-1"}, f.deps.Register)
	if !errors.Is(err, errEmailTaken) {
		t.Fatalf("err = %v, want email taken", err)
	}
	_, err = RunRegister(context.Background(), RegisterRequest{Email: "bob2@example.com", Username: "BOB", Password: "Secret-Pass-1"}, f.deps.Register)
	if !errors.Is(err, errUsernameTaken) {
		t.Fatalf("err = %v, want username taken", err)
	}
	if f.rec.metrics[2] != 2 {
		t.Fatalf("duplicate metric = %d, want 2", f.rec.metrics[2])
	}
}

func TestRunRegisterMapsStoreDuplicateRace(t *testing.T) {
	f := newFixture(t)
	f.deps.Register.UserByNormalizedEmail = func(context.Context, string) (*store.User, error) {
		return nil, store.ErrNotFound
	}
	f.deps.Register.CreateUser = func(context.Context, *store.User) error {
		return store.ErrDuplicateEmail
	}
	_, err := RunRegister(context.Background(), RegisterRequest{Email: "race@example.com", Password: "Secret-Pass-1"}, f.deps.Register)
	if !errors.Is(err, errEmailTaken) {
		t.Fatalf("err = %v, want email taken", err)
	}
}

func TestRunRegisterMapsStoreUsernameRace(t *testing.T) {
	f := newFixture(t)
	f.deps.Register.UserByNormalizedUsername = func(context.Context, string) (*store.User, error) {
		return nil, store.ErrNotFound
	}
	f.deps.Register.CreateUser = func(context.Context, *store.User) error {
		return store.ErrDuplicateUsername
	}
	_, err := RunRegister(context.Background(), RegisterRequest{Email: "race@example.com", Username: "racer", Password: "Secret-Pass-1"}, f.deps.Register)
	if !errors.Is(err, errUsernameTaken) {
		t.Fatalf("err = %v, want username taken", err)
	}
	if f.rec.metrics[2] != 1 {
		t.Fatalf("duplicate metric = %d, want 1", f.rec.metrics[2])
	}
	if ev := f.rec.last(); ev.eventType != "register_duplicate" {
		t.Fatalf("audit event = %+v, want register_duplicate", ev)
	}
}

func TestRunRegisterWithoutRefresh(t *testing.T) {
	f := newFixture(t)
	f.deps.Register.Issue.RefreshEnabled = false
	issued := f.register(t, "norefresh@example.com", "", "Secret-Pass-1")
	if issued.RefreshToken != "" || !issued.RefreshTokenExpiresAt.IsZero() {
		t.Fatalf("unexpected refresh token: %+v", issued)
	}
}

func TestRunRegisterNotReady(t *testing.T) {
	_, err := RunRegister(context.Background(), RegisterRequest{}, RegisterDeps{Errors: RegisterErrors{EngineNotReady: errNotReady}})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("err = %v, want not ready", err)
	}
}

func TestRunLoginByEmailAndUsername(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "carol@example.com", "carol", "Secret-Pass-1")

	for _, id := range []string{"CAROL@example.com", "Carol"} {
		issued, err := RunLogin(context.Background(), LoginRequest{Identifier: id, Password: "Secret-Pass-1"}, f.deps.Login)
		if err != nil {
			t.Fatalf("RunLogin(%s): %v", id, err)
		}
		if issued.User.ID != reg.User.ID {
			t.Fatalf("RunLogin(%s) user = %s, want %s", id, issued.User.ID, reg.User.ID)
		}
	}
}

func TestRunLoginRejects(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dave@example.com", "dave", "Secret-Pass-1")

	cases := []LoginRequest{
		{Identifier: "dave@example.com", Password: "Wrong-Pass-1"},
		{Identifier: "nobody@example.com", Password: "Secret-Pass-1"},
		{Identifier: "nobody", Password: "Secret-Pass-1"},
	}
	for _, req := range cases {
		if _, err := RunLogin(context.Background(), req, f.deps.Login); !errors.Is(err, errInvalidCreds) {
			t.Fatalf("RunLogin(%+v) err = %v, want invalid credentials", req, err)
		}
	}

	f.deps.Login.AllowUsernameLogin = false
	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "dave", Password: "Secret-Pass-1"}, f.deps.Login); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("username login with AllowUsernameLogin=false err = %v", err)
	}

	var verr *validationErr
	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: " "}, f.deps.Login); !errors.As(err, &verr) {
		t.Fatalf("empty login err = %v, want validation error", err)
	}
}

func TestRunLoginUpgradesWeakHash(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "erin@example.com", "", "Secret-Pass-1")

	stronger, err := password.NewBcrypt(bcrypt.MinCost + 1)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	f.deps.Login.NeedsUpgrade = stronger.NeedsUpgrade
	f.deps.Login.HashPassword = stronger.Hash

	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "erin@example.com", Password: "Secret-Pass-1"}, f.deps.Login); err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	u, err := f.store.UserByID(context.Background(), reg.User.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil || cost != bcrypt.MinCost+1 {
		t.Fatalf("stored cost = %d (err %v), want %d", cost, err, bcrypt.MinCost+1)
	}
	if f.rec.metrics[12] != 1 {
		t.Fatalf("upgrade metric = %d, want 1", f.rec.metrics[12])
	}
}

func TestRunLoginUpgradeFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "frank@example.com", "", "Secret-Pass-1")
	f.deps.Login.NeedsUpgrade = func(string) (bool, error) { return true, nil }
	f.deps.Login.UpdatePasswordHash = func(context.Context, string, string) error { return errors.New("db down") }
	var warned bool
	f.deps.Login.Warn = func(string, error) { warned = true }

	if _, err := RunLogin(context.Background(), LoginRequest{Identifier: "frank@example.com", Password: "Secret-Pass-1"}, f.deps.Login); err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if !warned {
		t.Fatal("expected warning for failed upgrade")
	}
}

func TestRunRefreshRotates(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "gina@example.com", "", "Secret-Pass-1")

	res := RunRefresh(context.Background(), reg.RefreshToken, f.deps.Refresh)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("failure = %v err = %v", res.Failure, res.Err)
	}
	if res.Issued.RefreshToken == reg.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if res.UserID != reg.User.ID {
		t.Fatalf("user = %s, want %s", res.UserID, reg.User.ID)
	}

	again := RunRefresh(context.Background(), reg.RefreshToken, f.deps.Refresh)
	if again.Failure != RefreshFailureNotFound {
		t.Fatalf("reuse failure = %v, want NotFound", again.Failure)
	}
}

func TestRunRefreshFailures(t *testing.T) {
	f := newFixture(t)

	if res := RunRefresh(context.Background(), "garbage", f.deps.Refresh); res.Failure != RefreshFailureDecode {
		t.Fatalf("garbage failure = %v", res.Failure)
	}

	disabled := f.deps.Refresh
	disabled.Enabled = false
	if res := RunRefresh(context.Background(), "x", disabled); res.Failure != RefreshFailureDisabled {
		t.Fatalf("disabled failure = %v", res.Failure)
	}

	token, id, _ := refresh.New()
	past := time.Now().Add(-2 * time.Hour)
	_ = f.store.SaveRefreshToken(context.Background(), &store.RefreshToken{ID: id, UserID: "u-x", CreatedAt: past, ExpiresAt: past.Add(time.Hour)})
	if res := RunRefresh(context.Background(), token, f.deps.Refresh); res.Failure != RefreshFailureExpired {
		t.Fatalf("expired failure = %v", res.Failure)
	}
	if _, err := f.store.ConsumeRefreshToken(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("expired row should be consumed")
	}

	token, id, _ = refresh.New()
	_ = f.store.SaveRefreshToken(context.Background(), &store.RefreshToken{ID: id, UserID: "ghost", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)})
	if res := RunRefresh(context.Background(), token, f.deps.Refresh); res.Failure != RefreshFailureUserNotFound {
		t.Fatalf("ghost user failure = %v", res.Failure)
	}
}

func TestRunRefreshConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "hank@example.com", "", "Secret-Pass-1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := RunRefresh(context.Background(), reg.RefreshToken, f.deps.Refresh); res.Failure == RefreshFailureNone {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestRunLogoutAndLogoutAll(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ivy@example.com", "", "Secret-Pass-1")
	second, err := RunLogin(context.Background(), LoginRequest{Identifier: "ivy@example.com", Password: "Secret-Pass-1"}, f.deps.Login)
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}

	if err := RunLogout(context.Background(), reg.RefreshToken, f.deps.Logout); err != nil {
		t.Fatalf("RunLogout: %v", err)
	}
	if err := RunLogout(context.Background(), reg.RefreshToken, f.deps.Logout); err != nil {
		t.Fatalf("second RunLogout: %v", err)
	}
	if err := RunLogout(context.Background(), "bad", f.deps.Logout); !errors.Is(err, errTokenInvalid) {
		t.Fatalf("malformed logout err = %v", err)
	}

	n, err := RunLogoutAll(context.Background(), reg.User.ID, f.deps.Logout)
	if err != nil || n != 1 {
		t.Fatalf("RunLogoutAll = %d, %v; want 1, nil", n, err)
	}
	if res := RunRefresh(context.Background(), second.RefreshToken, f.deps.Refresh); res.Failure != RefreshFailureNotFound {
		t.Fatalf("refresh after logout-all failure = %v", res.Failure)
	}
	if _, err := RunLogoutAll(context.Background(), " ", f.deps.Logout); !errors.Is(err, errUserNotFound) {
		t.Fatalf("blank user err = %v", err)
	}
}

func TestRunValidate(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "jack@example.com", "jack", "Secret-Pass-1")

	res := RunValidate("Bearer "+reg.AccessToken, f.deps.Validate)
	if res.Failure != ValidateFailureNone || res.Claims.Subject != reg.User.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res := RunValidate("", f.deps.Validate); res.Failure != ValidateFailureEmpty {
		t.Fatalf("empty failure = %v", res.Failure)
	}
	if res := RunValidate("a.b.c", f.deps.Validate); res.Failure != ValidateFailureInvalid {
		t.Fatalf("invalid failure = %v", res.Failure)
	}

	expired := ValidateDeps{ParseAccess: func(string) (*jwt.AccessClaims, error) { return nil, jwt.ErrExpired }}
	if res := RunValidate("x", expired); res.Failure != ValidateFailureExpired {
		t.Fatalf("expired failure = %v", res.Failure)
	}
}

func TestRunChangePassword(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "kate@example.com", "", "Secret-Pass-1")
	ctx := context.Background()

	if err := RunChangePassword(ctx, reg.User.ID, "Wrong-Pass-1", "Next-Pass-2", f.deps.ChangePassword); !errors.Is(err, errInvalidCreds) {
		t.Fatalf("wrong current err = %v", err)
	}
	if err := RunChangePassword(ctx, reg.User.ID, "Secret-Pass-1", "Secret-Pass-1", f.deps.ChangePassword); !errors.Is(err, errReuse) {
		t.Fatalf("reuse err = %v", err)
	}
	var verr *validationErr
	if err := RunChangePassword(ctx, reg.User.ID, "Secret-Pass-1", "weak", f.deps.ChangePassword); !errors.As(err, &verr) {
		t.Fatalf("policy err = %v", err)
	}
	if verr.fields[0].Field != "new_password" {
		t.Fatalf("policy field = %q", verr.fields[0].Field)
	}
	if err := RunChangePassword(ctx, "missing", "Secret-Pass-1", "Next-Pass-2", f.deps.ChangePassword); !errors.Is(err, errUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}

	if err := RunChangePassword(ctx, reg.User.ID, "Secret-Pass-1", "Next-Pass-2", f.deps.ChangePassword); err != nil {
		t.Fatalf("RunChangePassword: %v", err)
	}
	if res := RunRefresh(ctx, reg.RefreshToken, f.deps.Refresh); res.Failure != RefreshFailureNotFound {
		t.Fatalf("refresh after password change failure = %v", res.Failure)
	}
	if _, err := RunLogin(ctx, LoginRequest{Identifier: "kate@example.com", Password: "Next-Pass-2"}, f.deps.Login); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
