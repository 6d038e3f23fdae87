package estateAuth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/session"
	"github.com/MrEthical07/estateAuth/store"
)

const testPassword = "correct-horse-battery"

type testEnv struct {
	engine *Engine
	db     *bun.DB
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	audit  *ChannelSink
}

func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Session.Secure = false
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", 1)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func buildEngine(t *testing.T, cfg Config, db *bun.DB, rdb redis.UniversalClient, sink AuditSink) *Engine {
	t.Helper()
	b := New().WithConfig(cfg).WithDB(db).WithAuditSink(sink)
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	cfg := cheapConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := newTestDB(t)
	sink := NewChannelSink(512)

	return &testEnv{
		engine: buildEngine(t, cfg, db, rdb, sink),
		db:     db,
		mr:     mr,
		rdb:    rdb,
		audit:  sink,
	}
}

func (env *testEnv) register(t *testing.T, email string, role session.Role) *AuthResult {
	t.Helper()
	res, err := env.engine.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: testPassword,
		Name:     strings.Split(email, "@")[0],
		Role:     role,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

func (env *testEnv) admin(t *testing.T) *session.Session {
	t.Helper()
	user, err := env.engine.CreateUser(context.Background(), RegisterInput{
		Email:    "root@example.com",
		Password: testPassword,
		Name:     "Root",
		Role:     session.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return session.New(user.ID, user.Role, time.Now())
}

func (env *testEnv) listing(t *testing.T, s *session.Session, title string, status store.ListingStatus) *store.Listing {
	t.Helper()
	l, err := env.engine.CreateListing(context.Background(), s, ListingInput{
		Title:   title,
		Address: "12 Rua Augusta",
		City:    "Lisbon",
		Price:   decimal.RequireFromString("420000"),
		Status:  status,
	})
	if err != nil {
		t.Fatalf("CreateListing(%s): %v", title, err)
	}
	return l
}

func (env *testEnv) auditEvents() []AuditEvent {
	env.engine.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

/*
====================================
ACCOUNTS
====================================
*/

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reg := env.register(t, "Alice@Example.com", "")
	if reg.User.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", reg.User.Email)
	}
	if reg.User.Role != session.RoleUser || reg.Session.Role != session.RoleUser {
		t.Fatalf("expected user role, got %q / %q", reg.User.Role, reg.Session.Role)
	}
	if reg.Session.UserID != reg.User.ID || reg.Session.SessionID == "" {
		t.Fatalf("unexpected session: %+v", reg.Session)
	}

	res, err := env.engine.Login(ctx, "ALICE@example.com ", testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Session.UserID != reg.User.ID {
		t.Fatal("login returned a different user")
	}
	if res.Session.SessionID == reg.Session.SessionID {
		t.Fatal("login should issue a new session id")
	}

	me, err := env.engine.Me(ctx, res.Session)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.ID != reg.User.ID {
		t.Fatal("Me returned a different user")
	}
	if _, err := env.engine.Me(ctx, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Me(nil) = %v, want ErrUnauthorized", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 || snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
	var observed uint64
	for _, n := range snap.Histograms[MetricLoginLatency] {
		observed += n
	}
	if observed != 1 {
		t.Fatalf("expected one latency observation, got %d", observed)
	}
}

func TestRegisterRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "taken@example.com", session.RoleUser)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{Email: "TAKEN@example.com", Password: testPassword, Name: "Dup"}, ErrAccountExists},
		{"admin role", RegisterInput{Email: "a@example.com", Password: testPassword, Name: "A", Role: session.RoleAdmin}, ErrInvalidInput},
		{"superadmin role", RegisterInput{Email: "s@example.com", Password: testPassword, Name: "S", Role: session.RoleSuperAdmin}, ErrInvalidInput},
		{"unknown role", RegisterInput{Email: "r@example.com", Password: testPassword, Name: "R", Role: "owner"}, ErrInvalidInput},
		{"bad email", RegisterInput{Email: "not-an-email", Password: testPassword, Name: "B"}, ErrInvalidInput},
		{"short password", RegisterInput{Email: "p@example.com", Password: "short", Name: "P"}, ErrInvalidInput},
		{"missing name", RegisterInput{Email: "n@example.com", Password: testPassword}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Register(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register = %v, want %v", err, tt.want)
			}
		})
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 1 {
		t.Fatalf("duplicate counter = %d", got)
	}
}

func TestRegisterAgentCreatesProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.Register(ctx, RegisterInput{
		Email:    "agent@example.com",
		Password: testPassword,
		Name:     "Ana Agent",
		Role:     session.RoleAgent,
		Phone:    " +351 900 000 000 ",
		Agency:   "Tejo Homes",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	agents, err := env.engine.ListAgents(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected one agent, got %d", len(agents))
	}
	a := agents[0]
	if a.UserID != res.User.ID || a.Name != "Ana Agent" || a.Agency != "Tejo Homes" || a.Phone != "+351 900 000 000" {
		t.Fatalf("unexpected profile: %+v", a)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "bob@example.com", session.RoleUser)

	_, errWrong := env.engine.Login(ctx, "bob@example.com", "wrong-password-123")
	_, errUnknown := env.engine.Login(ctx, "nobody@example.com", testPassword)
	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("got %v and %v, want ErrInvalidCredentials", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatal("failure messages differ")
	}

	events := env.auditEvents()
	failures := 0
	for _, ev := range events {
		if ev.EventType != auditEventLoginFailure {
			continue
		}
		failures++
		if ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("unexpected error code %q", ev.Error)
		}
		for _, v := range ev.Metadata {
			if strings.Contains(v, "wrong-password") || strings.Contains(v, testPassword) {
				t.Fatal("audit metadata leaked a password")
			}
		}
	}
	if failures != 2 {
		t.Fatalf("expected 2 login_failure events, got %d", failures)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "carol@example.com", session.RoleUser)

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(ctx, "carol@example.com", "wrong-password-123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, "carol@example.com", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Fatalf("rate limited counter = %d", got)
	}

	env.mr.FastForward(16 * time.Minute)
	if _, err := env.engine.Login(ctx, "carol@example.com", testPassword); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestLoginSuccessResetsAccountCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "dave@example.com", session.RoleUser)

	for i := 0; i < 3; i++ {
		_, _ = env.engine.Login(ctx, "dave@example.com", "wrong-password-123")
	}
	if _, err := env.engine.Login(ctx, "dave@example.com", testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if attempts, err := env.engine.limiter.LoginAttempts(ctx, "dave@example.com"); err != nil || attempts != 0 {
		t.Fatalf("attempts = %d, %v", attempts, err)
	}
}

func TestLoginFailsClosedWhenRedisDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "erin@example.com", session.RoleUser)

	env.mr.Close()
	if _, err := env.engine.Login(ctx, "erin@example.com", testPassword); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestLoginWithoutRedisIsUnthrottled(t *testing.T) {
	db := newTestDB(t)
	engine := buildEngine(t, cheapConfig(), db, nil, nil)
	ctx := context.Background()

	if _, err := engine.Register(ctx, RegisterInput{Email: "f@example.com", Password: testPassword, Name: "F"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 8; i++ {
		_, _ = engine.Login(ctx, "f@example.com", "wrong-password-123")
	}
	if _, err := engine.Login(ctx, "f@example.com", testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestRegistrationRateLimitPerIP(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit.MaxRegistrationsPerIP = 2
	})
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	for i, email := range []string{"g1@example.com", "g2@example.com"} {
		if _, err := env.engine.Register(ctx, RegisterInput{Email: email, Password: testPassword, Name: "G"}); err != nil {
			t.Fatalf("registration %d: %v", i, err)
		}
	}
	_, err := env.engine.Register(ctx, RegisterInput{Email: "g3@example.com", Password: testPassword, Name: "G"})
	if !errors.Is(err, ErrRegistrationRateLimited) {
		t.Fatalf("expected ErrRegistrationRateLimited, got %v", err)
	}

	other := WithClientIP(context.Background(), "198.51.100.7")
	if _, err := env.engine.Register(other, RegisterInput{Email: "g3@example.com", Password: testPassword, Name: "G"}); err != nil {
		t.Fatalf("registration from other ip: %v", err)
	}
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Password.Time = 2
	})
	ctx := context.Background()

	weak, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hash, err := weak.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	users := store.NewUserRepository(env.db)
	user := &store.User{Email: "h@example.com", Name: "H", PasswordHash: hash, Role: session.RoleUser}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := env.engine.Login(ctx, "h@example.com", testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}

	stored, err := users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PasswordHash == hash {
		t.Fatal("hash was not upgraded")
	}
	if needs, err := env.engine.hasher.NeedsRehash(stored.PasswordHash); err != nil || needs {
		t.Fatalf("upgraded hash still needs rehash: %v %v", needs, err)
	}
}

/*
====================================
SESSIONS
====================================
*/

func TestSessionCookieRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "ivy@example.com", session.RoleUser)

	rec := httptest.NewRecorder()
	if err := env.engine.SetSessionCookie(rec, reg.Session); err != nil {
		t.Fatalf("SetSessionCookie: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != env.engine.CookieName() || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	s, ok := env.engine.SessionFromRequest(req)
	if !ok {
		t.Fatal("expected session")
	}
	if s.UserID != reg.User.ID || s.Role != session.RoleUser || s.SessionID != reg.Session.SessionID {
		t.Fatalf("unexpected session: %+v", s)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := env.engine.SessionFromRequest(bare); ok {
		t.Fatal("expected no session without cookie")
	}

	junk := httptest.NewRequest(http.MethodGet, "/", nil)
	junk.AddCookie(&http.Cookie{Name: env.engine.CookieName(), Value: "%%%not-base64"})
	if _, ok := env.engine.SessionFromRequest(junk); ok {
		t.Fatal("expected no session for junk cookie")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionValid] != 1 || snap.Counters[MetricSessionAbsent] != 1 || snap.Counters[MetricSessionMalformed] != 1 {
		t.Fatalf("unexpected session counters: %v", snap.Counters)
	}
}

func TestSignedSessionsRejectForgedCookie(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Session.SigningKey = strings.Repeat("s", 32)
	})

	forged, err := session.NewPlainCodec().Encode(session.New("someone", session.RoleSuperAdmin, time.Now()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: env.engine.CookieName(), Value: forged})
	if _, ok := env.engine.SessionFromRequest(req); ok {
		t.Fatal("forged unsigned cookie accepted")
	}

	reg := env.register(t, "jay@example.com", session.RoleUser)
	cookie, err := env.engine.SessionCookie(reg.Session)
	if err != nil {
		t.Fatalf("SessionCookie: %v", err)
	}
	if strings.Count(cookie.Value, ".") != 2 {
		t.Fatalf("expected a JWT cookie value, got %q", cookie.Value)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if _, ok := env.engine.SessionFromRequest(req); !ok {
		t.Fatal("signed cookie rejected")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "kim@example.com", session.RoleUser)

	rec := httptest.NewRecorder()
	env.engine.Logout(context.Background(), rec, reg.Session)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("expected an expiring cookie, got %+v", cookies)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("logout counter = %d", got)
	}
}

/*
====================================
LISTINGS
====================================
*/

func TestListingVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com", session.RoleUser).Session
	other := env.register(t, "other@example.com", session.RoleUser).Session
	admin := env.admin(t)

	draft := env.listing(t, owner, "Draft loft", "")
	if draft.Status != store.StatusDraft || draft.OwnerID != owner.UserID {
		t.Fatalf("unexpected defaults: %+v", draft)
	}

	if _, err := env.engine.GetListing(ctx, nil, draft.ID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("anonymous read of draft = %v", err)
	}
	if _, err := env.engine.GetListing(ctx, other, draft.ID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("other user read of draft = %v", err)
	}
	if _, err := env.engine.GetListing(ctx, owner, draft.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := env.engine.GetListing(ctx, admin, draft.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	published := store.StatusPublished
	if _, err := env.engine.UpdateListing(ctx, owner, draft.ID, ListingPatch{Status: &published}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := env.engine.GetListing(ctx, nil, draft.ID); err != nil {
		t.Fatalf("anonymous read of published: %v", err)
	}
	if _, err := env.engine.GetListing(ctx, other, draft.ID); err != nil {
		t.Fatalf("other user read of published: %v", err)
	}
}

func TestListListingsByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com", session.RoleUser).Session
	bob := env.register(t, "bob@example.com", session.RoleUser).Session
	admin := env.admin(t)

	env.listing(t, alice, "A draft", store.StatusDraft)
	env.listing(t, alice, "A published", store.StatusPublished)
	env.listing(t, bob, "B published", store.StatusPublished)

	count := func(s *session.Session) int {
		t.Helper()
		got, err := env.engine.ListListings(ctx, s, store.ListingQuery{})
		if err != nil {
			t.Fatalf("ListListings: %v", err)
		}
		return len(got)
	}

	if n := count(nil); n != 2 {
		t.Fatalf("anonymous sees %d, want 2", n)
	}
	if n := count(alice); n != 2 {
		t.Fatalf("alice sees %d, want 2", n)
	}
	if n := count(bob); n != 1 {
		t.Fatalf("bob sees %d, want 1", n)
	}
	if n := count(admin); n != 3 {
		t.Fatalf("admin sees %d, want 3", n)
	}

	browse, err := env.engine.BrowseListings(ctx, store.ListingQuery{Status: store.StatusDraft})
	if err != nil {
		t.Fatalf("BrowseListings: %v", err)
	}
	if len(browse) != 2 {
		t.Fatalf("browse returned %d, want 2 published", len(browse))
	}
	for _, l := range browse {
		if l.Status != store.StatusPublished {
			t.Fatalf("browse returned %s listing", l.Status)
		}
	}
}

func TestListingMutationsRespectOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner@example.com", session.RoleUser).Session
	other := env.register(t, "other@example.com", session.RoleUser).Session
	admin := env.admin(t)

	l := env.listing(t, owner, "Riverside", store.StatusPublished)

	title := "Stolen"
	if _, err := env.engine.UpdateListing(ctx, other, l.ID, ListingPatch{Title: &title}); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("other update = %v", err)
	}
	if err := env.engine.DeleteListing(ctx, other, l.ID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("other delete = %v", err)
	}
	if _, err := env.engine.UpdateListing(ctx, nil, l.ID, ListingPatch{Title: &title}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous update = %v", err)
	}

	title = "Riverside, renovated"
	updated, err := env.engine.UpdateListing(ctx, admin, l.ID, ListingPatch{Title: &title})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Title != title || updated.OwnerID != owner.UserID {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := env.engine.DeleteListing(ctx, owner, l.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := env.engine.GetListing(ctx, admin, l.ID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("read after delete = %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricListingCreated] != 1 || snap.Counters[MetricListingUpdated] != 1 || snap.Counters[MetricListingDeleted] != 1 {
		t.Fatalf("unexpected listing counters: %v", snap.Counters)
	}
}

func TestCreateListingOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "user@example.com", session.RoleUser).Session
	target := env.register(t, "target@example.com", session.RoleUser).Session
	admin := env.admin(t)

	in := ListingInput{
		Title:   "On behalf",
		Address: "3 Main St",
		City:    "Porto",
		Price:   decimal.NewFromInt(100000),
		OwnerID: target.UserID,
	}

	if _, err := env.engine.CreateListing(ctx, nil, in); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous create = %v", err)
	}
	if _, err := env.engine.CreateListing(ctx, user, in); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("user create for another owner = %v", err)
	}
	l, err := env.engine.CreateListing(ctx, admin, in)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if l.OwnerID != target.UserID {
		t.Fatalf("owner = %q, want %q", l.OwnerID, target.UserID)
	}

	in.OwnerID = ""
	in.Price = decimal.NewFromInt(-1)
	if _, err := env.engine.CreateListing(ctx, user, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative price = %v", err)
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricPermissionDenied]; got != 1 {
		t.Fatalf("permission denied counter = %d", got)
	}
}

func TestArchivingRequiresModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "user@example.com", session.RoleUser).Session
	admin := env.admin(t)

	_, err := env.engine.CreateListing(ctx, user, ListingInput{
		Title:   "Archived at birth",
		Address: "1 Side St",
		City:    "Faro",
		Price:   decimal.NewFromInt(1),
		Status:  store.StatusArchived,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("user create archived = %v", err)
	}

	l := env.listing(t, user, "Cottage", store.StatusPublished)
	archived := store.StatusArchived
	if _, err := env.engine.UpdateListing(ctx, user, l.ID, ListingPatch{Status: &archived}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("user archive via update = %v", err)
	}
	if err := env.engine.SetListingStatus(ctx, user, l.ID, store.StatusArchived); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("user SetListingStatus = %v", err)
	}
	if err := env.engine.SetListingStatus(ctx, admin, l.ID, "gone"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown status = %v", err)
	}
	if err := env.engine.SetListingStatus(ctx, admin, l.ID, store.StatusArchived); err != nil {
		t.Fatalf("admin SetListingStatus: %v", err)
	}

	got, err := env.engine.GetListing(ctx, user, l.ID)
	if err != nil {
		t.Fatalf("owner read archived: %v", err)
	}
	if got.Status != store.StatusArchived {
		t.Fatalf("status = %s", got.Status)
	}

	published := store.StatusPublished
	if _, err := env.engine.UpdateListing(ctx, user, l.ID, ListingPatch{Status: &published}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("user unarchive = %v", err)
	}
}

/*
====================================
AGENTS
====================================
*/

func TestAgentListingsDefaultToOwnProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	agent := env.register(t, "agent@example.com", session.RoleAgent).Session
	user := env.register(t, "user@example.com", session.RoleUser).Session

	l := env.listing(t, agent, "Agent flat", store.StatusPublished)
	if l.AgentID == "" {
		t.Fatal("agent listing has no agent id")
	}
	a, err := env.engine.GetAgent(ctx, l.AgentID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if a.UserID != agent.UserID {
		t.Fatal("listing linked to the wrong profile")
	}

	_, err = env.engine.CreateListing(ctx, user, ListingInput{
		Title:   "Ghost agent",
		Address: "9 Nowhere",
		City:    "Braga",
		Price:   decimal.NewFromInt(5),
		AgentID: "missing",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown agent id = %v", err)
	}
}

func TestGetAgentUsesCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "agent@example.com", session.RoleAgent)

	agents, err := env.engine.ListAgents(ctx, 0, 0)
	if err != nil || len(agents) != 1 {
		t.Fatalf("ListAgents = %d, %v", len(agents), err)
	}
	id := agents[0].ID

	for i := 0; i < 3; i++ {
		if _, err := env.engine.GetAgent(ctx, id); err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
	}
	if _, err := env.engine.GetAgent(ctx, "missing"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("missing agent = %v", err)
	}

	stats := env.engine.CacheStats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Fatalf("unexpected cache stats: %+v", stats)
	}
	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricAgentCacheHit] != 2 || snap.Counters[MetricAgentCacheMiss] != 2 {
		t.Fatalf("unexpected cache counters: %v", snap.Counters)
	}
}

func TestUpdateAgent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	agent := env.register(t, "agent@example.com", session.RoleAgent).Session
	rival := env.register(t, "rival@example.com", session.RoleAgent).Session
	admin := env.admin(t)

	agents, err := env.engine.ListAgents(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	var id string
	for _, a := range agents {
		if a.UserID == agent.UserID {
			id = a.ID
		}
	}
	if _, err := env.engine.GetAgent(ctx, id); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	name := "Hijacked"
	if _, err := env.engine.UpdateAgent(ctx, rival, id, AgentPatch{Name: &name}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("rival update = %v", err)
	}
	if _, err := env.engine.UpdateAgent(ctx, nil, id, AgentPatch{Name: &name}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous update = %v", err)
	}

	name = "Ana Silva"
	bio := "Central Lisbon specialist"
	if _, err := env.engine.UpdateAgent(ctx, agent, id, AgentPatch{Name: &name, Bio: &bio}); err != nil {
		t.Fatalf("self update: %v", err)
	}
	got, err := env.engine.GetAgent(ctx, id)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Name != "Ana Silva" || got.Bio != bio {
		t.Fatalf("stale profile served: %+v", got)
	}

	agency := "Atlantic Realty"
	if _, err := env.engine.UpdateAgent(ctx, admin, id, AgentPatch{Agency: &agency}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if _, err := env.engine.UpdateAgent(ctx, admin, "missing", AgentPatch{Agency: &agency}); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("missing agent update = %v", err)
	}

	if got := env.engine.MetricsSnapshot().Counters[MetricAgentUpdated]; got != 2 {
		t.Fatalf("agent updated counter = %d", got)
	}
}

func TestInvalidateAgentRequiresModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	agent := env.register(t, "agent@example.com", session.RoleAgent).Session
	admin := env.admin(t)

	if err := env.engine.InvalidateAgent(ctx, agent, ""); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("agent invalidate = %v", err)
	}
	if err := env.engine.InvalidateAgent(ctx, nil, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous invalidate = %v", err)
	}
	if err := env.engine.InvalidateAgent(ctx, admin, ""); err != nil {
		t.Fatalf("admin purge: %v", err)
	}
	if got := env.engine.CacheStats().Invalidations; got != 1 {
		t.Fatalf("invalidations = %d", got)
	}
}

func TestAgentInvalidationReachesPeers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	peer := buildEngine(t, cheapConfig(), env.db, env.rdb, nil)

	for _, e := range []*Engine{env.engine, peer} {
		select {
		case <-e.CacheReady():
		case <-time.After(5 * time.Second):
			t.Fatal("cache subscriber not ready")
		}
	}

	agent := env.register(t, "agent@example.com", session.RoleAgent).Session
	agents, err := env.engine.ListAgents(ctx, 10, 0)
	if err != nil || len(agents) != 1 {
		t.Fatalf("ListAgents = %d, %v", len(agents), err)
	}
	id := agents[0].ID

	if _, err := peer.GetAgent(ctx, id); err != nil {
		t.Fatalf("peer warm: %v", err)
	}

	name := "Renamed"
	if _, err := env.engine.UpdateAgent(ctx, agent, id, AgentPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateAgent: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := peer.GetAgent(ctx, id)
		if err != nil {
			t.Fatalf("peer GetAgent: %v", err)
		}
		if got.Name == name {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("peer kept serving the stale profile")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngineNilSafety(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if _, err := e.Login(ctx, "a@example.com", testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login = %v", err)
	}
	if _, err := e.ListListings(ctx, nil, store.ListingQuery{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("ListListings = %v", err)
	}
	if _, err := e.GetAgent(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("GetAgent = %v", err)
	}
	if err := e.Ping(ctx); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Ping = %v", err)
	}
	if _, ok := e.SessionFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("nil engine returned a session")
	}
	e.Close()
}

func TestBuildRequiresDatabase(t *testing.T) {
	if _, err := New().WithConfig(cheapConfig()).Build(); err == nil {
		t.Fatal("expected error without database")
	}

	db := newTestDB(t)
	b := New().WithConfig(cheapConfig()).WithDB(db)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on builder reuse")
	}
	if err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
