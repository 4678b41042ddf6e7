package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

type fakeBackend struct {
	loginResult *co2api.LoginResult
	loginErr    error
	signupErr   error
	signups     []co2api.SignupRequest
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (*co2api.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeBackend) Signup(_ context.Context, req co2api.SignupRequest) error {
	f.signups = append(f.signups, req)
	return f.signupErr
}

func newProvider(t *testing.T, backend *fakeBackend) (*auth.Provider, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	p := auth.NewProvider(auth.ProviderConfig{
		Backend: backend,
		Store:   store,
		JWT: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "transportco2",
			Audience:   "transportco2-app",
		}),
		SessionTTL: time.Hour,
		Logger:     zerolog.Nop(),
	})
	return p, store
}

func okBackend() *fakeBackend {
	return &fakeBackend{loginResult: &co2api.LoginResult{
		Token: "backend-token",
		User:  co2api.User{ID: 7, Name: "Alice", Email: "alice@example.com", Role: "Admin"},
	}}
}

func TestProvider_Login(t *testing.T) {
	p, store := newProvider(t, okBackend())
	ctx := context.Background()

	resp, err := p.Login(ctx, auth.LoginRequest{Email: " alice@example.com ", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Positive(t, resp.ExpiresIn)
	assert.Equal(t, int64(7), resp.User.ID)
	assert.Equal(t, auth.RoleAdmin, resp.User.Role)
	assert.Equal(t, 1, store.Len())

	claims, err := p.Authenticate(resp.AccessToken)
	require.NoError(t, err)

	sess, err := p.Session(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "backend-token", sess.UpstreamToken)
	assert.Equal(t, "admin", sess.User.Role)
}

func TestProvider_Login_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     auth.LoginRequest
		backend error
		check   func(t *testing.T, err error)
	}{
		{
			name: "invalid email",
			req:  auth.LoginRequest{Email: "not-an-email", Password: "x"},
			check: func(t *testing.T, err error) {
				_, ok := validation.AsError(err)
				assert.True(t, ok)
			},
		},
		{
			name:    "rejected credentials",
			req:     auth.LoginRequest{Email: "a@example.com", Password: "wrong"},
			backend: &co2api.Error{Op: "login", StatusCode: 401, Err: co2api.ErrUnauthorized},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			},
		},
		{
			name:    "backend down",
			req:     auth.LoginRequest{Email: "a@example.com", Password: "pw"},
			backend: &co2api.Error{Op: "login", Err: co2api.ErrUnavailable},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, co2api.ErrUnavailable)
				assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := okBackend()
			backend.loginErr = tt.backend
			p, store := newProvider(t, backend)

			_, err := p.Login(context.Background(), tt.req)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestProvider_Signup(t *testing.T) {
	backend := okBackend()
	p, _ := newProvider(t, backend)

	err := p.Signup(context.Background(), auth.SignupRequest{Name: " Bob ", Email: "bob@example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.Len(t, backend.signups, 1)
	assert.Equal(t, "Bob", backend.signups[0].Name)

	backend.signupErr = &co2api.Error{Op: "signup", StatusCode: 409, Err: co2api.ErrConflict}
	err = p.Signup(context.Background(), auth.SignupRequest{Name: "Bob", Email: "bob@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, auth.ErrAccountExists)

	err = p.Signup(context.Background(), auth.SignupRequest{Name: "Bob", Email: "bob@example.com", Password: "123"})
	_, ok := validation.AsError(err)
	assert.True(t, ok)
}

func TestProvider_SessionLifecycle(t *testing.T) {
	p, _ := newProvider(t, okBackend())
	ctx := context.Background()

	resp, err := p.Login(ctx, auth.LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	claims, err := p.Authenticate(resp.AccessToken)
	require.NoError(t, err)
	sid := claims.SessionID

	view, err := p.SetTheme(ctx, sid, "dark")
	require.NoError(t, err)
	assert.Equal(t, "dark", view.Theme)

	_, err = p.SetTheme(ctx, sid, "  ")
	_, ok := validation.AsError(err)
	assert.True(t, ok)

	view, err = p.SyncUser(ctx, sid, co2api.User{ID: 7, Name: "Alice B", Email: "alice@example.com", Role: "Normal"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", view.Name)
	assert.Equal(t, auth.RoleNormal, view.Role)
	assert.Equal(t, "dark", view.Theme)

	current, err := p.CurrentUser(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", current.Name)

	refreshed, err := p.Refresh(ctx, sid)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	require.NoError(t, p.Logout(ctx, sid))

	_, err = p.CurrentUser(ctx, sid)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	_, err = p.Refresh(ctx, sid)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	_, err = p.SetTheme(ctx, sid, "light")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	assert.NoError(t, p.Logout(ctx, sid))
}

func TestProvider_SessionStoreFailure(t *testing.T) {
	p := auth.NewProvider(auth.ProviderConfig{
		Backend: okBackend(),
		Store:   failingStore{},
		JWT:     auth.NewJWTService(auth.JWTConfig{SigningKey: "k", Issuer: "i", Audience: "a"}),
		Logger:  zerolog.Nop(),
	})

	_, err := p.Login(context.Background(), auth.LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating session")
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Create(context.Context, *session.Session) error { return errStoreDown }
func (failingStore) Get(context.Context, string) (*session.Session, error) {
	return nil, errStoreDown
}
func (failingStore) Update(context.Context, *session.Session) error { return errStoreDown }
func (failingStore) Delete(context.Context, string) error           { return errStoreDown }
func (failingStore) DeleteExpired(context.Context) (int, error)     { return 0, errStoreDown }

func TestProvider_Login_PublishesEvent(t *testing.T) {
	recorder := events.NewRecorder(nil)
	p := auth.NewProvider(auth.ProviderConfig{
		Backend:   okBackend(),
		Store:     session.NewMemoryStore(),
		JWT:       auth.NewJWTService(auth.JWTConfig{SigningKey: "test-secret-key-for-testing-only"}),
		Publisher: recorder,
		Logger:    zerolog.Nop(),
	})

	_, err := p.Login(context.Background(), auth.LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)

	published := recorder.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeUserLoggedIn, published[0].Type)

	var payload events.UserLoggedIn
	require.NoError(t, published[0].Decode(&payload))
	assert.Equal(t, int64(7), payload.UserID)
	assert.Equal(t, "admin", payload.Role)
}
