package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists a whole session history at once.
type Store interface {
	// Load returns the persisted history. A missing or unreadable
	// history yields an empty slice, not an error.
	Load(ctx context.Context) ([]Turn, error)

	// Save overwrites the persisted history.
	Save(ctx context.Context, turns []Turn) error
}

// FileStore keeps the history as a JSON array in a single file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]Turn, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Turn{}, nil
	}
	if err != nil {
		log.Warn("Memory file unreadable, starting empty", "path", s.path, "err", err)
		return []Turn{}, nil
	}

	turns, err := decode(data)
	if err != nil {
		log.Warn("Memory file corrupt, starting empty", "path", s.path, "err", err)
		return []Turn{}, nil
	}

	return turns, nil
}

// Save writes to a temp file in the same directory and renames it over
// the target, so a failed write never truncates the previous history.
func (s *FileStore) Save(_ context.Context, turns []Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	return nil
}

// RedisStore keeps the history of one session as a JSON array under a
// single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

const redisKeyPrefix = "optimus:memory:"

func NewRedisStore(client *redis.Client, session string) *RedisStore {
	if session == "" {
		session = "default"
	}
	return &RedisStore{
		client: client,
		key:    redisKeyPrefix + session,
	}
}

func (s *RedisStore) Load(ctx context.Context) ([]Turn, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	turns, err := decode(val)
	if err != nil {
		log.Warn("Memory key corrupt, starting empty", "key", s.key, "err", err)
		return []Turn{}, nil
	}

	return turns, nil
}

func (s *RedisStore) Save(ctx context.Context, turns []Turn) error {
	val, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	if err := s.client.Set(ctx, s.key, val, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}

	return nil
}

func decode(data []byte) ([]Turn, error) {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
