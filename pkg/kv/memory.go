package kv

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store implementation backed by a map.
// It is safe for concurrent use and intended primarily for testing.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	opts *Options
}

// NewMemory creates a new in-memory Store.
// Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string][]byte),
		opts: opts,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent mutation.
	return bytes.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(m.opts.encode(key))
	cp := bytes.Clone(value)
	if cp == nil {
		cp = []byte{}
	}
	m.mu.Lock()
	m.data[k] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Has(_ context.Context, key Key) (bool, error) {
	k := string(m.opts.encode(key))
	m.mu.RLock()
	_, ok := m.data[k]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) Delete(_ context.Context, key Key) (bool, error) {
	k := string(m.opts.encode(key))
	m.mu.Lock()
	_, ok := m.data[k]
	delete(m.data, k)
	m.mu.Unlock()
	return ok, nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := string(m.opts.prefixBytes(prefix))

	// Snapshot matching keys under read lock.
	m.mu.RLock()
	var keys []string
	vals := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
			vals[k] = bytes.Clone(v)
		}
	}
	m.mu.RUnlock()
	slices.Sort(keys)

	return func(yield func(Entry, error) bool) {
		for _, k := range keys {
			entry := Entry{
				Key:   m.opts.decode([]byte(k)),
				Value: vals[k],
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
