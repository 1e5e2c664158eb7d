package config

import "time"

type SessionConfig interface {
	GetSessionMaxAge() time.Duration
	GetSessionPruneInterval() time.Duration
	GetSessionStorePath() string
	GetSessionCookieName() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionMaxAge() time.Duration {
	return 1 * time.Hour
}

func (Session) GetSessionPruneInterval() time.Duration {
	return 1 * time.Hour
}

func (Session) GetSessionStorePath() string {
	return GetEnv("SESSION_STORE_PATH", "./data/sessions.db")
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "login_session_id")
}
