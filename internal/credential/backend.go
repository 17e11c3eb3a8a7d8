package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/KaramelBytes/termchat-cli/internal/utils"
)

// Backend persists the encoded credential file. Read returns an error
// wrapping fs.ErrNotExist when nothing has been written yet.
type Backend interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// FileBackend stores credentials in a single file, replaced atomically on
// every write and readable only by the owner.
type FileBackend struct {
	Path string
}

func (b FileBackend) Read() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return data, nil
}

func (b FileBackend) Write(data []byte) error {
	if b.Path == "" {
		return errors.New("credentials path not set")
	}
	return utils.SafeWriteFile(b.Path, data, 0o600)
}

// MemoryBackend keeps the encoded file in memory. It is used by tests and
// whenever persistence must not touch the filesystem.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	exists bool
	writes int
	// FailWrites makes every Write return an error.
	FailWrites bool
}

// NewMemoryBackend returns a backend pre-populated with data; nil means
// nothing persisted yet.
func NewMemoryBackend(data []byte) *MemoryBackend {
	return &MemoryBackend{data: slices.Clone(data), exists: data != nil}
}

func (m *MemoryBackend) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, fmt.Errorf("read credentials: %w", fs.ErrNotExist)
	}
	return slices.Clone(m.data), nil
}

func (m *MemoryBackend) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("write credentials: backend unavailable")
	}
	m.data = slices.Clone(data)
	m.exists = true
	m.writes++
	return nil
}

// Bytes returns a copy of the last written content.
func (m *MemoryBackend) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data)
}

// Writes returns how many successful writes happened.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
