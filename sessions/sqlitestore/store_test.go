package sqlitestore_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
	"github.com/jrsteele09/go-login-gateway/sessions"
	"github.com/jrsteele09/go-login-gateway/sessions/sqlitestore"
)

func openStore(t *testing.T, options ...sqlitestore.Option) *sqlitestore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := sqlitestore.Open(path, time.Hour, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.Authenticated())

	loaded, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, loaded.ID)
	require.Nil(t, loaded.FlowContext)
	require.Nil(t, loaded.Identity)
}

func TestCreateAllocatesUniqueIDs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx)
	require.NoError(t, err)
	second, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestUpsertRoundTripsFlowContextAndIdentity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	session.FlowContext = &sessions.FlowContext{
		State:         "state-123",
		CodeVerifier:  "verifier-456",
		CodeChallenge: "challenge-789",
		CreatedAt:     time.Now(),
	}
	session.Identity = []byte(`{"v":1,"profile":{"email":"jane@x.com"}}`)
	require.NoError(t, store.Upsert(ctx, session.ID, session))

	loaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.FlowContext)
	require.Equal(t, "state-123", loaded.FlowContext.State)
	require.Equal(t, "verifier-456", loaded.FlowContext.CodeVerifier)
	require.Equal(t, "challenge-789", loaded.FlowContext.CodeChallenge)
	require.Equal(t, session.Identity, loaded.Identity)
	require.True(t, loaded.Authenticated())
}

func TestUpsertClearsFlowContext(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	session.FlowContext = &sessions.FlowContext{State: "state-123", CreatedAt: time.Now()}
	require.NoError(t, store.Upsert(ctx, session.ID, session))

	session.FlowContext = nil
	require.NoError(t, store.Upsert(ctx, session.ID, session))

	loaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.FlowContext)
}

func TestGetUnknownSession(t *testing.T) {
	store := openStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestExpiryIsAuthoritativeAtRead(t *testing.T) {
	now := time.Now()
	currentTime := now
	store := openStore(t, sqlitestore.WithNowTime(func() time.Time { return currentTime }))
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	// Before expiry the session loads; afterwards it is gone even though
	// no prune has run.
	currentTime = now.Add(59 * time.Minute)
	_, err = store.Get(ctx, session.ID)
	require.NoError(t, err)

	currentTime = now.Add(61 * time.Minute)
	_, err = store.Get(ctx, session.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, session.ID))
	require.NoError(t, store.Delete(ctx, session.ID))

	_, err = store.Get(ctx, session.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDeleteExpiredSessions(t *testing.T) {
	now := time.Now()
	store := openStore(t, sqlitestore.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	expired, err := store.Create(ctx)
	require.NoError(t, err)
	live, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.DeleteExpiredSessions(ctx, now.Add(2*time.Hour)))

	_, err = store.Get(ctx, expired.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = store.Get(ctx, live.ID)
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	fresh, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.DeleteExpiredSessions(ctx, now.Add(-time.Minute)))
	_, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestConcurrentWritesToSameSessionDoNotTear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)

	// Each writer stores a mutually consistent record; after the race the
	// stored row must match one writer entirely, never a mix.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n byte) {
			defer wg.Done()
			update := *session
			update.FlowContext = &sessions.FlowContext{
				State:         string([]byte{'s', n}),
				CodeVerifier:  string([]byte{'v', n}),
				CodeChallenge: string([]byte{'c', n}),
				CreatedAt:     time.Now(),
			}
			_ = store.Upsert(ctx, session.ID, &update)
		}(byte('0' + i))
	}
	wg.Wait()

	loaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.FlowContext)
	suffixState := loaded.FlowContext.State[1]
	require.Equal(t, suffixState, loaded.FlowContext.CodeVerifier[1])
	require.Equal(t, suffixState, loaded.FlowContext.CodeChallenge[1])
}

func TestSessionsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := sqlitestore.Open(path, time.Hour)
	require.NoError(t, err)

	session, err := store.Create(ctx)
	require.NoError(t, err)
	session.Identity = []byte(`{"v":1,"profile":{"email":"jane@x.com"}}`)
	require.NoError(t, store.Upsert(ctx, session.ID, session))
	require.NoError(t, store.Close())

	reopened, err := sqlitestore.Open(path, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Get(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, session.Identity, loaded.Identity)
}
