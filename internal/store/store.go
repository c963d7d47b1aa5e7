package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wisp/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store persists chats as serialized records keyed by chat id, plus a
// singleton settings slot. Read failures degrade to empty results;
// write failures propagate. Last-writer-wins, no locking beyond that.
type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// Open opens (creating if needed) the wisp database at dbPath.
func Open(dbPath string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS settings (
			slot INTEGER PRIMARY KEY CHECK (slot = 0),
			data TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db, log: log, now: time.Now}, nil
}

// OpenDefault opens the database under the user config dir.
func OpenDefault(log *zap.Logger) (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return Open(filepath.Join(configDir, "wisp", "wisp.db"), log)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all chats sorted by updatedAt descending. Storage
// failures are logged and yield an empty list.
func (s *Store) List() []models.Chat {
	rows, err := s.db.Query("SELECT data FROM chats ORDER BY updated_at DESC")
	if err != nil {
		s.log.Error("listing chats", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			s.log.Error("scanning chat row", zap.Error(err))
			return nil
		}
		var chat models.Chat
		if err := json.Unmarshal([]byte(data), &chat); err != nil {
			s.log.Warn("skipping undecodable chat record", zap.Error(err))
			continue
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("listing chats", zap.Error(err))
		return nil
	}
	return chats
}

// Get returns the chat with the given id, or ok=false if it does not
// exist or cannot be read.
func (s *Store) Get(id string) (models.Chat, bool) {
	var data string
	err := s.db.QueryRow("SELECT data FROM chats WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return models.Chat{}, false
	}
	if err != nil {
		s.log.Error("reading chat", zap.String("chat_id", id), zap.Error(err))
		return models.Chat{}, false
	}

	var chat models.Chat
	if err := json.Unmarshal([]byte(data), &chat); err != nil {
		s.log.Error("decoding chat record", zap.String("chat_id", id), zap.Error(err))
		return models.Chat{}, false
	}
	return chat, true
}

// Create inserts a new empty chat. An empty title gets the default
// placeholder.
func (s *Store) Create(title string) (models.Chat, error) {
	if title == "" {
		title = models.DefaultChatTitle
	}
	now := s.now()
	chat := models.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(chat); err != nil {
		return models.Chat{}, fmt.Errorf("creating chat: %w", err)
	}
	return chat, nil
}

// Update rewrites the full chat record under its id and stamps
// UpdatedAt. A failed update is returned to the caller: losing a write
// must be visible.
func (s *Store) Update(chat models.Chat) (models.Chat, error) {
	chat.UpdatedAt = s.now()
	if err := s.write(chat); err != nil {
		return models.Chat{}, fmt.Errorf("updating chat %s: %w", chat.ID, err)
	}
	return chat, nil
}

// Delete removes a chat. Returns false if nothing was deleted.
func (s *Store) Delete(id string) bool {
	res, err := s.db.Exec("DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		s.log.Error("deleting chat", zap.String("chat_id", id), zap.Error(err))
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return n > 0
}

// AppendMessage assigns an id and timestamp to the draft, appends it to
// the chat and persists. ok=false means the chat does not exist or the
// draft content is empty; err reports a failed write.
//
// The first user message appended while the title still equals the
// placeholder derives the title: 15 characters plus "..." if longer.
func (s *Store) AppendMessage(chatID string, draft models.Message) (models.Chat, bool, error) {
	if draft.Content == "" {
		return models.Chat{}, false, nil
	}
	chat, ok := s.Get(chatID)
	if !ok {
		return models.Chat{}, false, nil
	}

	draft.ID = uuid.NewString()
	draft.CreatedAt = s.now()
	chat.Messages = append(chat.Messages, draft)

	if chat.Title == models.DefaultChatTitle && draft.Role == models.RoleUser {
		chat.Title = deriveTitle(draft.Content)
	}

	updated, err := s.Update(chat)
	if err != nil {
		return models.Chat{}, false, err
	}
	return updated, true, nil
}

func deriveTitle(content string) string {
	r := []rune(content)
	if len(r) > 15 {
		return string(r[:15]) + "..."
	}
	return content
}

func (s *Store) write(chat models.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO chats(id, data, updated_at) VALUES(?, ?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		chat.ID,
		string(data),
		chat.UpdatedAt.UnixNano(),
	)
	return err
}

// LoadSettings reads the settings slot. A missing or unreadable slot
// yields zero-value settings.
func (s *Store) LoadSettings() models.Settings {
	var data string
	err := s.db.QueryRow("SELECT data FROM settings WHERE slot = 0").Scan(&data)
	if err == sql.ErrNoRows {
		return models.Settings{}
	}
	if err != nil {
		s.log.Error("reading settings", zap.Error(err))
		return models.Settings{}
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		s.log.Error("decoding settings", zap.Error(err))
		return models.Settings{}
	}
	return settings
}

// SaveSettings rewrites the settings slot. Failures propagate.
func (s *Store) SaveSettings(settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO settings(slot, data) VALUES(0, ?) ON CONFLICT(slot) DO UPDATE SET data = excluded.data",
		string(data),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
