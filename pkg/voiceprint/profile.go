package voiceprint

import (
	"fmt"
	"time"
)

// DefaultPassphrase is stored when enrollment does not name one.
const DefaultPassphrase = "Hello Emora"

// Profile is the enrolled voice of one user.
type Profile struct {
	UserID        string        `msgpack:"user_id" json:"user_id"`
	Vector        FeatureVector `msgpack:"vector" json:"vector"`
	Passphrase    string        `msgpack:"passphrase" json:"passphrase"`
	SchemaVersion int           `msgpack:"schema_version" json:"schema_version"`
	CreatedAt     time.Time     `msgpack:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `msgpack:"updated_at" json:"updated_at"`
}

// NewProfile builds a profile for the current schema.
func NewProfile(userID string, v FeatureVector, passphrase string, now time.Time) *Profile {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	return &Profile{
		UserID:        userID,
		Vector:        v.Clone(),
		Passphrase:    passphrase,
		SchemaVersion: SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks that the profile matches the current schema.
func (p *Profile) Validate() error {
	if p.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: profile %q has schema v%d, current is v%d",
			ErrSchemaMismatch, p.UserID, p.SchemaVersion, SchemaVersion)
	}
	if len(p.Vector) != Dimension {
		return fmt.Errorf("%w: profile %q has %d dimensions, want %d",
			ErrSchemaMismatch, p.UserID, len(p.Vector), Dimension)
	}
	return nil
}
