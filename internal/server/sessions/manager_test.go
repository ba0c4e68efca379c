package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"github.com/dmitrijs2005/tubeaccounts/internal/logging"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/auth"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/models"
	"github.com/dmitrijs2005/tubeaccounts/internal/server/passwords"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// memStore is an in-memory Store with the same atomicity as the SQL one.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newMemStore(users ...*models.User) *memStore {
	s := &memStore{users: map[string]*models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) FindByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *memStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (s *memStore) UpdateRefreshToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	return nil
}

func (s *memStore) SwapRefreshToken(_ context.Context, id, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.RefreshToken == "" || u.RefreshToken != expected {
		return common.ErrRefreshTokenMismatch
	}
	u.RefreshToken = next
	return nil
}

func (s *memStore) stored(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].RefreshToken
}

func newAda(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "id-ada", Username: "ada", Email: "ada@x.io", PasswordHash: string(hash)}
}

func newTestManager(t *testing.T, store Store, opts ...auth.Option) *Manager {
	t.Helper()
	codec := auth.NewCodec("access", "refresh", "test", opts...)
	return NewManager(store, codec, passwords.NewHasher(bcrypt.MinCost),
		Config{AccessTTL: time.Minute, RefreshTTL: time.Hour}, nopLogger{})
}

func TestIssue_PersistsRefreshToken(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)

	pair, err := m.Issue(context.Background(), "id-ada")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, store.stored("id-ada"))

	id, err := m.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "id-ada", id)
}

func TestIssue_UnknownIdentityIsInternal(t *testing.T) {
	m := newTestManager(t, newMemStore())

	_, err := m.Issue(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorIs(t, err, common.ErrIdentityNotFound)
}

func TestIssue_StoreFailureReturnsNoTokens(t *testing.T) {
	store := newMemStore(newAda(t))
	store.err = errors.New("connection refused")
	m := newTestManager(t, store)

	pair, err := m.Issue(context.Background(), "id-ada")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAuthenticate(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Credentials
		want error
	}{
		{name: "by username", in: Credentials{Username: "ada", Password: "secret123"}},
		{name: "by email, mixed case", in: Credentials{Email: " ADA@x.io ", Password: "secret123"}},
		{name: "username is lower-cased", in: Credentials{Username: "Ada", Password: "secret123"}},
		{name: "wrong password", in: Credentials{Username: "ada", Password: "nope"}, want: common.ErrCredentialMismatch},
		{name: "unknown identity", in: Credentials{Username: "bob", Password: "secret123"}, want: common.ErrIdentityNotFound},
		{name: "no identifier", in: Credentials{Password: "secret123"}, want: common.ErrValidation},
		{name: "no password", in: Credentials{Username: "ada"}, want: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := m.Authenticate(ctx, tt.in)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, "id-ada", u.ID)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			if !errors.Is(tt.want, common.ErrValidation) {
				assert.ErrorIs(t, err, common.ErrorUnauthorized)
			}
		})
	}
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("timeout")

	_, err := newTestManager(t, store).Authenticate(context.Background(), Credentials{Username: "ada", Password: "x"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRotate_SingleUse(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	first, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)

	user, second, err := m.Rotate(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "id-ada", user.ID)
	assert.Empty(t, user.PasswordHash)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, second.RefreshToken, store.stored("id-ada"))

	_, _, err = m.Rotate(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.ErrorIs(t, err, common.ErrRefreshTokenMismatch)
}

func TestRotate_AfterRevokeFails(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "id-ada"))
	assert.Empty(t, store.stored("id-ada"))

	_, _, err = m.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenMismatch)
}

func TestRotate_NewLoginSupersedesOldSession(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	old, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)
	_, err = m.Issue(ctx, "id-ada")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, old.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenMismatch)
}

func TestRotate_Failures(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, _, err := m.Rotate(ctx, "")
		assert.ErrorIs(t, err, common.ErrMissingToken)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, _, err := m.Rotate(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, common.ErrInvalidToken)
		assert.ErrorIs(t, err, auth.ErrBadSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := m.Rotate(ctx, "not.a.token")
		assert.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("identity gone", func(t *testing.T) {
		codec := auth.NewCodec("access", "refresh", "test")
		orphan, err := codec.Sign(auth.Payload{UserID: "ghost"}, auth.PurposeRefresh, time.Hour)
		require.NoError(t, err)

		_, _, err = m.Rotate(ctx, orphan)
		assert.ErrorIs(t, err, common.ErrIdentityNotFound)
	})

	t.Run("store down", func(t *testing.T) {
		store.err = errors.New("down")
		t.Cleanup(func() { store.err = nil })

		_, _, err := m.Rotate(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorInternal)
	})
}

func TestRotate_Expired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	store := newMemStore(newAda(t))
	m := newTestManager(t, store, auth.WithClock(clock))
	ctx := context.Background()

	pair, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, _, err = m.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = m.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestRotate_ConcurrentSameTokenHasOneWinner(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "id-ada")
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		mismatch  int
		unexpects []error
		start     = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := m.Rotate(ctx, pair.RefreshToken)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, common.ErrRefreshTokenMismatch):
				mismatch++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, unexpects)
	assert.Equal(t, 1, winners)
	assert.Equal(t, workers-1, mismatch)
}

func TestRevoke_UnknownIdentity(t *testing.T) {
	err := newTestManager(t, newMemStore()).Revoke(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrIdentityNotFound)
}

func TestVerifyAccess_RejectsRefreshToken(t *testing.T) {
	store := newMemStore(newAda(t))
	m := newTestManager(t, store)

	pair, err := m.Issue(context.Background(), "id-ada")
	require.NoError(t, err)

	_, err = m.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = m.VerifyAccess("")
	assert.ErrorIs(t, err, common.ErrMissingToken)
}
