// Package sqlitestore persists sessions in a single SQLite file so login
// state survives process restarts. SQLite serializes writers, which gives
// the per-session-ID write ordering the session contract requires.
package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
	"github.com/jrsteele09/go-login-gateway/sessions"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	identity BLOB,
	flow_state TEXT,
	flow_code_verifier TEXT,
	flow_code_challenge TEXT,
	flow_created_at INTEGER,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

var _ sessions.Repo = (*Store)(nil)

// Store implements sessions.Repo over SQLite.
type Store struct {
	sqlDB   *sql.DB
	maxAge  time.Duration
	nowTime func() time.Time

	pruneStop chan struct{}
	pruneDone chan struct{}
}

// Option modifies a Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// Open opens the session store at path, creating the schema if needed.
// maxAge is the fixed session lifetime applied at creation.
func Open(path string, maxAge time.Duration, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.Wrapf(errors.ErrSessionPersistenceFailed, "storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db")
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "ping sqlite db")
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "create sessions schema")
	}

	store := &Store{
		sqlDB:   sqlDB,
		maxAge:  maxAge,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

// Close stops the pruner, if running, and releases the database.
func (s *Store) Close() error {
	if s.pruneStop != nil {
		close(s.pruneStop)
		<-s.pruneDone
		s.pruneStop = nil
	}
	return s.sqlDB.Close()
}

// StartPruner launches the background sweep of expired records. Pruning is
// best-effort; Get enforces expiry regardless of sweep timing.
func (s *Store) StartPruner(interval time.Duration) {
	s.pruneStop = make(chan struct{})
	s.pruneDone = make(chan struct{})

	go func() {
		defer close(s.pruneDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.DeleteExpiredSessions(context.Background(), s.nowTime()); err != nil {
					log.Err(err).Msg("session pruning failed")
				}
			case <-s.pruneStop:
				return
			}
		}
	}()
}

// Create allocates and persists a fresh session record.
func (s *Store) Create(ctx context.Context) (*sessions.Session, error) {
	now := s.nowTime()
	session := &sessions.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.maxAge),
	}
	if err := s.Upsert(ctx, session.ID, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get retrieves a session, treating expired records as not found.
func (s *Store) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if sessionID == "" {
		return nil, errors.ErrSessionNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, identity, flow_state, flow_code_verifier, flow_code_challenge, flow_created_at, created_at, expires_at
		FROM sessions WHERE id = ?`, sessionID)

	var (
		session       sessions.Session
		identityBlob  []byte
		flowState     sql.NullString
		flowVerifier  sql.NullString
		flowChallenge sql.NullString
		flowCreatedAt sql.NullInt64
		createdAt     int64
		expiresAt     int64
	)
	err := row.Scan(&session.ID, &identityBlob, &flowState, &flowVerifier, &flowChallenge, &flowCreatedAt, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrSessionPersistenceFailed, "loading session: %v", err)
	}

	session.Identity = identityBlob
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	if flowState.Valid {
		session.FlowContext = &sessions.FlowContext{
			State:         flowState.String,
			CodeVerifier:  flowVerifier.String,
			CodeChallenge: flowChallenge.String,
			CreatedAt:     fromMillis(flowCreatedAt.Int64),
		}
	}

	if session.Expired(s.nowTime()) {
		_ = s.Delete(ctx, sessionID)
		return nil, errors.ErrSessionNotFound
	}

	return &session, nil
}

// Upsert writes the full session record in a single statement, relying on
// SQLite's writer serialization to prevent interleaved field updates.
func (s *Store) Upsert(ctx context.Context, sessionID string, session *sessions.Session) error {
	if sessionID == "" || session == nil {
		return errors.Wrapf(errors.ErrSessionPersistenceFailed, "sessionID and session are required")
	}
	session.ID = sessionID

	var (
		flowState     sql.NullString
		flowVerifier  sql.NullString
		flowChallenge sql.NullString
		flowCreatedAt sql.NullInt64
	)
	if fc := session.FlowContext; fc != nil {
		flowState = sql.NullString{String: fc.State, Valid: true}
		flowVerifier = sql.NullString{String: fc.CodeVerifier, Valid: true}
		flowChallenge = sql.NullString{String: fc.CodeChallenge, Valid: true}
		flowCreatedAt = sql.NullInt64{Int64: toMillis(fc.CreatedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO sessions (id, identity, flow_state, flow_code_verifier, flow_code_challenge, flow_created_at, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity = excluded.identity,
			flow_state = excluded.flow_state,
			flow_code_verifier = excluded.flow_code_verifier,
			flow_code_challenge = excluded.flow_code_challenge,
			flow_created_at = excluded.flow_created_at,
			expires_at = excluded.expires_at`,
		sessionID, session.Identity, flowState, flowVerifier, flowChallenge, flowCreatedAt,
		toMillis(session.CreatedAt), toMillis(session.ExpiresAt))
	if err != nil {
		return errors.Wrapf(errors.ErrSessionPersistenceFailed, "saving session: %v", err)
	}
	return nil
}

// Delete removes a session record. Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return errors.Wrapf(errors.ErrSessionPersistenceFailed, "deleting session: %v", err)
	}
	return nil
}

// DeleteExpiredSessions removes records whose expiry is at or before cutoff.
func (s *Store) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(cutoff)); err != nil {
		return errors.Wrapf(errors.ErrSessionPersistenceFailed, "pruning sessions: %v", err)
	}
	return nil
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
