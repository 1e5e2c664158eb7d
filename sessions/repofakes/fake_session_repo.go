package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
	"github.com/jrsteele09/go-login-gateway/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo for tests. It mirrors the
// durable store's semantics: expiry is enforced at read time and deletes of
// missing sessions succeed.
type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	lock     sync.RWMutex

	MaxAge  time.Duration
	NowTime func() time.Time

	// UpsertErr, when set, is returned by Upsert to simulate a store outage
	UpsertErr error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.Session),
		MaxAge:   time.Hour,
		NowTime:  time.Now,
	}
}

func (sr *FakeSessionRepo) Create(_ context.Context) (*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	now := sr.NowTime()
	session := &sessions.Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(sr.MaxAge),
	}
	sr.sessions[session.ID] = copySession(session)
	return session, nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, sessionID string) (*sessions.Session, error) {
	sr.lock.RLock()
	session, ok := sr.sessions[sessionID]
	sr.lock.RUnlock()

	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	if session.Expired(sr.NowTime()) {
		sr.lock.Lock()
		delete(sr.sessions, sessionID)
		sr.lock.Unlock()
		return nil, errors.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (sr *FakeSessionRepo) Upsert(_ context.Context, sessionID string, session *sessions.Session) error {
	if sr.UpsertErr != nil {
		return sr.UpsertErr
	}

	sr.lock.Lock()
	defer sr.lock.Unlock()

	session.ID = sessionID
	sr.sessions[sessionID] = copySession(session)
	return nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	delete(sr.sessions, sessionID)
	return nil
}

func (sr *FakeSessionRepo) DeleteExpiredSessions(_ context.Context, cutoff time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	for sessionID, session := range sr.sessions {
		if !session.ExpiresAt.After(cutoff) {
			delete(sr.sessions, sessionID)
		}
	}
	return nil
}

// copySession guards the map against external mutation of stored records.
func copySession(session *sessions.Session) *sessions.Session {
	clone := *session
	if session.FlowContext != nil {
		flowContext := *session.FlowContext
		clone.FlowContext = &flowContext
	}
	if session.Identity != nil {
		clone.Identity = append([]byte(nil), session.Identity...)
	}
	return &clone
}
