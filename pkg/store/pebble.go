package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"transrelay/pkg/logger"
	"transrelay/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
)

// ErrNotOpen is returned by every accessor before Open succeeds.
var ErrNotOpen = errors.New("pebble not opened; call store.Open first")

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	dbPath = ""
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func recordKey(chatID, msgID int64) []byte {
	return []byte(fmt.Sprintf("record:%d:%d", chatID, msgID))
}

func renderedKey(chatID, msgID int64) []byte {
	return []byte(fmt.Sprintf("render:%d:%d", chatID, msgID))
}

func chatConfigKey(chatID int64) []byte {
	return []byte(fmt.Sprintf("chatcfg:%d", chatID))
}

// PutRecord stores the original entry behind a rendered message. An
// existing entry under the same key is overwritten.
func PutRecord(chatID, msgID int64, e models.OriginalEntry) error {
	if db == nil {
		return ErrNotOpen
	}
	if e.CreatedTS == 0 {
		e.CreatedTS = time.Now().UTC().UnixNano()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	key := recordKey(chatID, msgID)
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("save_record_failed", "key", string(key), "error", err)
		return err
	}
	logger.Debug("record_saved", "chat", chatID, "msg", msgID)
	return nil
}

// GetRecord returns the entry stored for a rendered message. found is false
// when nothing was ever stored under the key.
func GetRecord(chatID, msgID int64) (models.OriginalEntry, bool, error) {
	var e models.OriginalEntry
	if db == nil {
		return e, false, ErrNotOpen
	}
	found, err := getJSON(recordKey(chatID, msgID), &e)
	return e, found, err
}

// PutRendered stores the text a rendered message currently shows. It is
// kept apart from the record, which never changes once written.
func PutRendered(chatID, msgID int64, text string) error {
	if db == nil {
		return ErrNotOpen
	}
	if err := db.Set(renderedKey(chatID, msgID), []byte(text), pebble.Sync); err != nil {
		logger.Error("save_rendered_failed", "chat", chatID, "msg", msgID, "error", err)
		return err
	}
	return nil
}

// GetRendered returns the last text stored by PutRendered.
func GetRendered(chatID, msgID int64) (string, bool, error) {
	if db == nil {
		return "", false, ErrNotOpen
	}
	v, closer, err := db.Get(renderedKey(chatID, msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(v), true, nil
}

// SaveChatConfig persists the settings of one chat.
func SaveChatConfig(chatID int64, cfg models.ChatConfig) error {
	if db == nil {
		return ErrNotOpen
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat config: %w", err)
	}
	if err := db.Set(chatConfigKey(chatID), data, pebble.Sync); err != nil {
		logger.Error("save_chat_config_failed", "chat", chatID, "error", err)
		return err
	}
	logger.Info("chat_config_saved", "chat", chatID)
	return nil
}

// GetChatConfig loads a chat's settings; found is false when none were saved.
func GetChatConfig(chatID int64) (models.ChatConfig, bool, error) {
	var cfg models.ChatConfig
	if db == nil {
		return cfg, false, ErrNotOpen
	}
	found, err := getJSON(chatConfigKey(chatID), &cfg)
	return cfg, found, err
}

func getJSON(key []byte, out any) (bool, error) {
	v, closer, err := db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Error("get_key_failed", "key", string(key), "error", err)
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("corrupt value under %s: %w", key, err)
	}
	return true, nil
}

// ListKeys returns all keys (as strings) that start with the given prefix.
// If prefix is empty it returns all keys in the DB.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := append([]byte(nil), iter.Key()...)
		out = append(out, string(k))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", ErrNotOpen
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}

// SaveKey stores a raw value under key.
func SaveKey(key string, value []byte) error {
	if db == nil {
		return ErrNotOpen
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

// DeleteKey removes key; deleting a missing key is not an error.
func DeleteKey(key string) error {
	if db == nil {
		return ErrNotOpen
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// IsNotFound reports a GetKey miss.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// Records adapts the record functions to context-aware callers.
type Records struct{}

func (Records) Put(ctx context.Context, chatID, msgID int64, e models.OriginalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return PutRecord(chatID, msgID, e)
}

func (Records) Get(ctx context.Context, chatID, msgID int64) (models.OriginalEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.OriginalEntry{}, false, err
	}
	return GetRecord(chatID, msgID)
}

func (Records) Rendered(ctx context.Context, chatID, msgID int64) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return GetRendered(chatID, msgID)
}

func (Records) SaveRendered(ctx context.Context, chatID, msgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return PutRendered(chatID, msgID, text)
}

// ChatConfigs adapts the chat config functions to context-aware callers.
type ChatConfigs struct{}

func (ChatConfigs) Load(ctx context.Context, chatID int64) (models.ChatConfig, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatConfig{}, false, err
	}
	return GetChatConfig(chatID)
}

func (ChatConfigs) Save(ctx context.Context, chatID int64, cfg models.ChatConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return SaveChatConfig(chatID, cfg)
}
