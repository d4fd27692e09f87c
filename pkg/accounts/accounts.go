// Package accounts implements the password channel of Emora sign-in.
//
// Accounts live in a kv.Store next to voice profiles and share only the user
// id with them. Passwords are stored as bcrypt hashes.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/emora/voiceauth/pkg/kv"
)

// Errors returned by Store.
var (
	ErrAccountExists      = errors.New("accounts: account already exists")
	ErrAccountNotFound    = errors.New("accounts: account not found")
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	ErrInvalidInput       = errors.New("accounts: invalid input")
	ErrStorage            = errors.New("accounts: storage failure")
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 8

// maxPasswordLength is bcrypt's input limit.
const maxPasswordLength = 72

// Account is a password credential for one user id.
type Account struct {
	UserID       string    `msgpack:"user_id" json:"user_id"`
	Name         string    `msgpack:"name,omitempty" json:"name,omitempty"`
	PasswordHash string    `msgpack:"password_hash" json:"-"`
	CreatedAt    time.Time `msgpack:"created_at" json:"created_at"`
}

// Options configures a Store.
type Options struct {
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// Store keeps accounts in a kv.Store under account:{user id}.
type Store struct {
	kv   kv.Store
	cost int
	now  func() time.Time

	// dummy is compared against when the account does not exist so that
	// unknown and known user ids take the same time to reject.
	dummy []byte
}

// NewStore creates an account store.
func NewStore(store kv.Store, opts *Options) *Store {
	s := &Store{kv: store, cost: bcrypt.DefaultCost, now: time.Now}
	if opts != nil {
		if opts.Cost != 0 {
			s.cost = opts.Cost
		}
		if opts.Now != nil {
			s.now = opts.Now
		}
	}
	s.dummy, _ = bcrypt.GenerateFromPassword([]byte("emora-unknown-account"), s.cost)
	return s
}

// accountKey trims the user id so every lookup agrees with Register.
func accountKey(userID string) kv.Key {
	return kv.Key{"account", url.QueryEscape(strings.TrimSpace(userID))}
}

// ValidateCredentials checks a user id and password the way Register does,
// without touching storage.
func ValidateCredentials(userID, password string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLength)
	}
	return nil
}

// Register creates an account. It fails with ErrAccountExists when the user
// id is taken.
func (s *Store) Register(ctx context.Context, userID, name, password string) (*Account, error) {
	userID = strings.TrimSpace(userID)
	if err := ValidateCredentials(userID, password); err != nil {
		return nil, err
	}

	exists, err := s.kv.Has(ctx, accountKey(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %q", ErrAccountExists, userID)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("accounts: hash password: %w", err)
	}
	a := &Account{
		UserID:       userID,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	data, err := msgpack.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("%w: encode account: %v", ErrStorage, err)
	}
	if err := s.kv.Set(ctx, accountKey(userID), data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return a, nil
}

// Authenticate checks a password. Unknown user ids and wrong passwords both
// yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, userID, password string) (*Account, error) {
	a, err := s.Get(ctx, strings.TrimSpace(userID))
	if errors.Is(err, ErrAccountNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// Get loads an account.
func (s *Store) Get(ctx context.Context, userID string) (*Account, error) {
	data, err := s.kv.Get(ctx, accountKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	var a Account
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode account %q: %v", ErrStorage, userID, err)
	}
	return &a, nil
}

// Exists reports whether an account is registered for userID.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	ok, err := s.kv.Has(ctx, accountKey(userID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return ok, nil
}

// Delete removes an account and reports whether it existed.
func (s *Store) Delete(ctx context.Context, userID string) (bool, error) {
	ok, err := s.kv.Delete(ctx, accountKey(userID))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return ok, nil
}
