package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/emora/voiceauth/pkg/kv"
)

// ProfileStore persists at most one Profile per user id.
//
// Save replaces any existing profile atomically. Writes to the same user id
// are serialized; readers see either the old or the new profile.
type ProfileStore interface {
	Save(ctx context.Context, p *Profile) error
	// Load returns ErrProfileNotFound when no profile exists and
	// ErrSchemaMismatch when the stored profile is from another schema.
	Load(ctx context.Context, userID string) (*Profile, error)
	// Delete reports whether a profile existed.
	Delete(ctx context.Context, userID string) (bool, error)
	// Exists agrees with Load: stale-schema records do not count.
	Exists(ctx context.Context, userID string) (bool, error)
	// Update replaces the profile of userID with the result of fn while
	// holding the user's write lock. fn receives nil when no current-schema
	// profile exists.
	Update(ctx context.Context, userID string, fn func(old *Profile) (*Profile, error)) error
	// List returns every stored profile, stale schemas included.
	List(ctx context.Context) ([]*Profile, error)
}

// KVProfileStore is a ProfileStore backed by a kv.Store. Profiles are
// msgpack-encoded under voice:profile:{user id}.
type KVProfileStore struct {
	kv    kv.Store
	locks KeyLocks
}

var _ ProfileStore = (*KVProfileStore)(nil)

// NewKVProfileStore creates a profile store on top of store.
func NewKVProfileStore(store kv.Store) *KVProfileStore {
	return &KVProfileStore{kv: store}
}

var profilePrefix = kv.Key{"voice", "profile"}

// profileKey escapes the user id so it cannot contain the key separator.
func profileKey(userID string) kv.Key {
	return kv.Key{"voice", "profile", url.QueryEscape(userID)}
}

func (s *KVProfileStore) Save(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode profile %q: %v", ErrStorage, p.UserID, err)
	}

	unlock := s.locks.Lock(p.UserID)
	defer unlock()
	return s.set(ctx, p.UserID, data)
}

func (s *KVProfileStore) set(ctx context.Context, userID string, data []byte) error {
	if err := s.kv.Set(ctx, profileKey(userID), data); err != nil {
		return fmt.Errorf("%w: save profile %q: %v", ErrStorage, userID, err)
	}
	return nil
}

func (s *KVProfileStore) Update(ctx context.Context, userID string, fn func(old *Profile) (*Profile, error)) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	old, err := s.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrSchemaMismatch):
		old = nil
	case err != nil:
		return err
	}
	p, err := fn(old)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return fmt.Errorf("voiceprint: update of %q returned profile for %q", userID, p.UserID)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode profile %q: %v", ErrStorage, userID, err)
	}
	return s.set(ctx, userID, data)
}

func (s *KVProfileStore) Load(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.kv.Get(ctx, profileKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load profile %q: %v", ErrStorage, userID, err)
	}
	var p Profile
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode profile %q: %v", ErrStorage, userID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *KVProfileStore) Delete(ctx context.Context, userID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	existed, err := s.kv.Delete(ctx, profileKey(userID))
	if err != nil {
		return false, fmt.Errorf("%w: delete profile %q: %v", ErrStorage, userID, err)
	}
	return existed, nil
}

func (s *KVProfileStore) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.Load(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrSchemaMismatch):
		return false, nil
	}
	return false, err
}

func (s *KVProfileStore) List(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	for entry, err := range s.kv.List(ctx, profilePrefix) {
		if err != nil {
			return nil, fmt.Errorf("%w: list profiles: %v", ErrStorage, err)
		}
		var p Profile
		if err := msgpack.Unmarshal(entry.Value, &p); err != nil {
			continue // skip malformed entries
		}
		out = append(out, &p)
	}
	return out, nil
}

// KeyLocks hands out one mutex per key, dropping it once no goroutine holds
// or waits on it. The zero value is ready to use.
type KeyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the function releasing it.
func (l *KeyLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*keyLock)
	}
	k, ok := l.m[key]
	if !ok {
		k = &keyLock{}
		l.m[key] = k
	}
	k.refs++
	l.mu.Unlock()

	k.Lock()
	return func() {
		k.Unlock()
		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
