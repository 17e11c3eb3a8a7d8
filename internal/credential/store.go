package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

var (
	// ErrStoreCorrupt means the persisted data could not be read or parsed.
	// The store is left empty and usable.
	ErrStoreCorrupt = errors.New("credential store corrupt")
	// ErrUnknownProvider means no credential is saved for the provider.
	ErrUnknownProvider = errors.New("no credential saved for provider")
	// ErrNoActiveProvider means no provider is selected for chat.
	ErrNoActiveProvider = errors.New("no active provider")
	// ErrEmptyAPIKey rejects blank keys.
	ErrEmptyAPIKey = errors.New("api key is empty")
)

// Store is the process-wide set of saved credentials, at most one per
// provider, plus the active provider pointer. Every mutation is written to
// the backend before it returns; if the write fails the in-memory state is
// left unchanged.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *zap.Logger
	st      state
}

// New returns an empty store persisting to backend. Call Load to read
// existing data.
func New(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log, st: emptyState()}
}

// NewFileStore is a convenience for New(FileBackend{Path: path}, log).
func NewFileStore(path string, log *zap.Logger) *Store {
	return New(FileBackend{Path: path}, log)
}

// Load replaces the in-memory content with the persisted data. A missing
// file yields an empty store. Unreadable or unparsable data yields
// ErrStoreCorrupt and an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Read()
	if err != nil {
		s.st = emptyState()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	st, warnings, err := decode(data)
	if err != nil {
		s.st = emptyState()
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	for _, w := range warnings {
		s.log.Warn("credential file", zap.String("issue", w))
	}
	s.st = st
	s.log.Debug("credentials loaded",
		zap.Int("credentials", len(st.order)),
		zap.String("active", st.active.ID()))
	return nil
}

// AddOrUpdate saves the credential for k, replacing any previous one. A
// blank model selects the provider's default model.
func (s *Store) AddOrUpdate(k provider.Kind, apiKey Secret, model string, opts ...Option) error {
	d, ok := provider.Lookup(k)
	if !ok {
		return fmt.Errorf("%w: kind %d", provider.ErrUnknownKind, uint8(k))
	}
	if apiKey.Empty() {
		return ErrEmptyAPIKey
	}
	c := Credential{Provider: k, APIKey: apiKey, Model: d.Model(model)}
	for _, opt := range opts {
		opt(&c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st.clone()
	if _, exists := next.creds[k]; !exists {
		next.order = append(next.order, k)
	}
	next.creds[k] = c
	return s.commit(next, "add", k)
}

// SetActive selects k for chat. It fails with ErrUnknownProvider when no
// credential is saved for k, leaving the store unchanged.
func (s *Store) SetActive(k provider.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.creds[k]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, k)
	}
	next := s.st.clone()
	next.active = k
	return s.commit(next, "switch", k)
}

// Remove deletes the credential for k. Removing the active provider leaves
// no provider active; another one is never picked automatically.
func (s *Store) Remove(k provider.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.creds[k]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, k)
	}
	next := s.st.clone()
	delete(next.creds, k)
	next.order = slices.DeleteFunc(next.order, func(o provider.Kind) bool { return o == k })
	if next.active == k {
		next.active = 0
	}
	return s.commit(next, "remove", k)
}

// ActiveCredential returns the credential selected for chat.
func (s *Store) ActiveCredential() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.active.Valid() {
		return Credential{}, ErrNoActiveProvider
	}
	return s.st.creds[s.st.active], nil
}

// Active returns the active provider, if any.
func (s *Store) Active() (provider.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.active, s.st.active.Valid()
}

// Get returns the saved credential for k.
func (s *Store) Get(k provider.Kind) (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.creds[k]
	return c, ok
}

// Len returns the number of saved credentials.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.order)
}

// Credentials returns a snapshot of all credentials in insertion order.
func (s *Store) Credentials() []Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Credential, 0, len(s.st.order))
	for _, k := range s.st.order {
		out = append(out, s.st.creds[k])
	}
	return out
}

// List yields (provider, model) pairs in insertion order. Each iteration
// works on a fresh snapshot, so the sequence can be ranged over repeatedly.
func (s *Store) List() iter.Seq2[provider.Kind, string] {
	return func(yield func(provider.Kind, string) bool) {
		for _, c := range s.Credentials() {
			if !yield(c.Provider, c.Model) {
				return
			}
		}
	}
}

// commit persists next and installs it on success. Callers hold s.mu.
func (s *Store) commit(next state, op string, k provider.Kind) error {
	data, err := encode(next)
	if err != nil {
		return err
	}
	if err := s.backend.Write(data); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	s.st = next
	s.log.Debug("credentials saved",
		zap.String("op", op),
		zap.String("provider", k.ID()),
		zap.Int("credentials", len(next.order)),
		zap.String("active", next.active.ID()))
	return nil
}
