package kv_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/emora/voiceauth/pkg/kv"
)

// backends lists every Store implementation the shared tests run against.
var backends = []struct {
	name string
	open func(t *testing.T, opts *kv.Options) kv.Store
}{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		return kv.NewMemory(opts)
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		return s
	}},
}

func eachBackend(t *testing.T, opts *kv.Options, fn func(t *testing.T, s kv.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, opts)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	eachBackend(t, nil, func(t *testing.T, s kv.Store) {
		key := kv.Key{"voice", "profile", "alice"}

		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if ok, err := s.Has(ctx, key); err != nil || ok {
			t.Fatalf("Has = %v, %v; want false", ok, err)
		}

		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Set(ctx, key, []byte("v2")); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "v2" {
			t.Fatalf("Get = %q, want v2", got)
		}
		if ok, err := s.Has(ctx, key); err != nil || !ok {
			t.Fatalf("Has = %v, %v; want true", ok, err)
		}

		existed, err := s.Delete(ctx, key)
		if err != nil || !existed {
			t.Fatalf("Delete = %v, %v; want true", existed, err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}

		existed, err = s.Delete(ctx, kv.Key{"no", "such", "key"})
		if err != nil || existed {
			t.Fatalf("Delete missing = %v, %v; want false", existed, err)
		}
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	eachBackend(t, nil, func(t *testing.T, s kv.Store) {
		for _, e := range []kv.Entry{
			{Key: kv.Key{"voice", "profile", "bob"}, Value: []byte("b")},
			{Key: kv.Key{"voice", "profile", "alice"}, Value: []byte("a")},
			{Key: kv.Key{"voice", "profiles", "x"}, Value: []byte("x")},
			{Key: kv.Key{"account", "alice"}, Value: []byte("acct")},
		} {
			if err := s.Set(ctx, e.Key, e.Value); err != nil {
				t.Fatalf("Set: %v", err)
			}
		}

		var got []string
		for entry, err := range s.List(ctx, kv.Key{"voice", "profile"}) {
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			got = append(got, entry.Key.String()+"="+string(entry.Value))
		}
		want := []string{"voice:profile:alice=a", "voice:profile:bob=b"}
		if !slices.Equal(got, want) {
			t.Fatalf("List = %v, want %v", got, want)
		}

		n := 0
		for _, err := range s.List(ctx, nil) {
			if err != nil {
				t.Fatalf("List all: %v", err)
			}
			n++
		}
		if n != 4 {
			t.Fatalf("List all: got %d entries, want 4", n)
		}

		// Early break must not deadlock or panic.
		for range s.List(ctx, nil) {
			break
		}
	})
}

func TestCustomSeparator(t *testing.T) {
	ctx := context.Background()
	eachBackend(t, &kv.Options{Separator: '/'}, func(t *testing.T, s kv.Store) {
		if err := s.Set(ctx, kv.Key{"a:b", "c"}, []byte("1")); err != nil {
			t.Fatal(err)
		}
		for entry, err := range s.List(ctx, kv.Key{"a:b"}) {
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(entry.Key, kv.Key{"a:b", "c"}) {
				t.Fatalf("key = %v", entry.Key)
			}
		}
	})
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	eachBackend(t, nil, func(t *testing.T, s kv.Store) {
		val := []byte("abc")
		if err := s.Set(ctx, kv.Key{"k"}, val); err != nil {
			t.Fatal(err)
		}
		val[0] = 'X'
		got, _ := s.Get(ctx, kv.Key{"k"})
		got[1] = 'Y'
		again, _ := s.Get(ctx, kv.Key{"k"})
		if string(again) != "abc" {
			t.Fatalf("stored value mutated: %q", again)
		}
	})
}

func TestBadgerDirRequired(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("expected error without Dir")
	}
}

func TestBadgerPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, kv.Key{"voice", "profile", "alice"}, []byte("p")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, kv.Key{"voice", "profile", "alice"})
	if err != nil || string(got) != "p" {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
}
