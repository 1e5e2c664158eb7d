// Package identity defines the profile assembled from a successful login
// and its serialized session representation.
package identity

import (
	"encoding/json"

	"github.com/jrsteele09/go-login-gateway/internal/errors"
)

// recordVersion is bumped whenever the session record schema changes.
// Records written under an unknown version are rejected rather than
// partially decoded.
const recordVersion = 1

// Profile is the identity assembled once per successful login. It is
// immutable after construction; this is what gets serialized into the
// session record.
type Profile struct {
	Email            string   `json:"email"`
	FirstName        string   `json:"firstName"`
	LastName         string   `json:"lastName"`
	Organizations    []string `json:"organizations"`
	AccessToken      string   `json:"accessToken"`
	ExchangedToken   string   `json:"exchangedToken"`
	ServerInstanceID string   `json:"serverInstanceId"`
}

// sessionRecord is the versioned envelope written into the session store.
type sessionRecord struct {
	Version int     `json:"v"`
	Profile Profile `json:"profile"`
}

// ToSessionRecord serializes a profile into the versioned session record.
func ToSessionRecord(profile *Profile) ([]byte, error) {
	if profile == nil {
		return nil, errors.Wrapf(errors.ErrMalformedSession, "nil profile")
	}
	data, err := json.Marshal(sessionRecord{Version: recordVersion, Profile: *profile})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedSession, "encoding session record: %v", err)
	}
	return data, nil
}

// FromSessionRecord reconstructs a profile from a stored session record.
// Corrupt or schema-incompatible data fails with ErrMalformedSession; a
// partially populated profile is never returned.
func FromSessionRecord(data []byte) (*Profile, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(errors.ErrMalformedSession, "empty session record")
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedSession, "decoding session record: %v", err)
	}
	if record.Version != recordVersion {
		return nil, errors.Wrapf(errors.ErrMalformedSession, "unsupported session record version %d", record.Version)
	}

	return &record.Profile, nil
}
