package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fablemesh/converse/core"
)

// FileStore is a core.MemoryStore persisting one yaml file per agent under a
// base directory. Writes go through a temp file + rename so a crash never
// leaves a half-written record. Safe for concurrent access.
type FileStore struct {
	mu         sync.Mutex
	dir        string
	maxHistory int
}

// FileStoreOptions configure a FileStore.
type FileStoreOptions struct {
	// MaxHistory bounds the trailing history retained per agent.
	MaxHistory int
}

// NewFileStore constructs a FileStore rooted at dir, creating the directory
// if needed.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{MaxHistory: DefaultMaxHistory}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{dir: dir, maxHistory: opts.MaxHistory}, nil
}

// Load returns the memory record for an agent, materializing an empty one if
// no file exists yet.
func (s *FileStore) Load(agent core.AgentID) (*core.AgentMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(agent)
}

// Save persists the full record for an agent.
func (s *FileStore) Save(agent core.AgentID, mem *core.AgentMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(agent, mem)
}

// AppendSystemEntry appends a system-role entry to the agent's trailing
// history and persists the record.
func (s *FileStore) AppendSystemEntry(agent core.AgentID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.loadLocked(agent)
	if err != nil {
		return err
	}
	rec.History = append(rec.History, core.NewSystemMessage(text))
	rec.History = trimHistory(rec.History, s.maxHistory)
	return s.saveLocked(agent, rec)
}

// AdjustRelation applies a bounded delta to the agent's relationship value
// toward target and persists the record.
func (s *FileStore) AdjustRelation(agent core.AgentID, target string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.loadLocked(agent)
	if err != nil {
		return err
	}
	if rec.Relations == nil {
		rec.Relations = map[string]int{}
	}
	rec.Relations[target] = clampRelation(rec.Relations[target] + delta)
	return s.saveLocked(agent, rec)
}

func (s *FileStore) loadLocked(agent core.AgentID) (*core.AgentMemory, error) {
	data, err := os.ReadFile(s.path(agent))
	if os.IsNotExist(err) {
		return &core.AgentMemory{Relations: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory for %s: %w", agent, err)
	}
	var rec core.AgentMemory
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode memory for %s: %w", agent, err)
	}
	if rec.Relations == nil {
		rec.Relations = map[string]int{}
	}
	return &rec, nil
}

func (s *FileStore) saveLocked(agent core.AgentID, mem *core.AgentMemory) error {
	data, err := yaml.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encode memory for %s: %w", agent, err)
	}
	path := s.path(agent)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory for %s: %w", agent, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit memory for %s: %w", agent, err)
	}
	return nil
}

func (s *FileStore) path(agent core.AgentID) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, string(agent))
	return filepath.Join(s.dir, name+".yaml")
}
