// Package progressor upgrades stored data when the running version differs
// from the one that last opened the store.
package progressor

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"transrelay/pkg/langs"
	"transrelay/pkg/logger"
	"transrelay/pkg/models"
	"transrelay/pkg/store"
)

const (
	systemVersionKey    = "system:version"
	systemInProgressKey = "system:migration_in_progress"
	chatConfigPrefix    = "chatcfg:"
)

// Sync rewrites every stored chat config into canonical form: usernames
// lower-cased without '@', language codes normalized and deduplicated with
// legacy "lang_" prefixes stripped. It is idempotent.
func Sync(ctx context.Context, from, to string) error {
	logger.Info("progressor_sync_start", "from", from, "to", to)

	keys, err := store.ListKeys(chatConfigPrefix)
	if err != nil {
		logger.Error("progressor_list_chat_configs_failed", "error", err)
		return err
	}
	fixed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		chatID, err := strconv.ParseInt(strings.TrimPrefix(k, chatConfigPrefix), 10, 64)
		if err != nil {
			logger.Warn("progressor_bad_chat_key", "key", k)
			continue
		}
		cfg, found, err := store.GetChatConfig(chatID)
		if err != nil || !found {
			logger.Error("progressor_load_chat_config_failed", "chat", chatID, "error", err)
			continue
		}
		out, changed := Canonical(cfg)
		if !changed {
			continue
		}
		if err := store.SaveChatConfig(chatID, out); err != nil {
			logger.Error("progressor_save_chat_config_failed", "chat", chatID, "error", err)
			continue
		}
		fixed++
	}

	logger.Info("progressor_sync_done", "from", from, "to", to, "chat_configs", len(keys), "rewritten", fixed)
	return nil
}

// Canonical returns cfg in canonical form and whether anything changed.
func Canonical(cfg models.ChatConfig) (models.ChatConfig, bool) {
	out := cfg.Clone()
	out.Normalize()

	from := make(map[string]string, len(out.FromMap))
	for user, label := range out.FromMap {
		u := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(user), "@"))
		if u == "" {
			continue
		}
		from[u] = label
	}
	out.FromMap = from

	codes := make([]string, 0, len(out.CustomLangs))
	for _, c := range out.CustomLangs {
		c = langs.Normalize(strings.TrimPrefix(c, "lang_"))
		if c == "" || slices.Contains(codes, c) {
			continue
		}
		codes = append(codes, c)
	}
	out.CustomLangs = codes

	slices.Sort(out.TopicPermissions)
	out.TopicPermissions = slices.Compact(out.TopicPermissions)

	changed := !slices.Equal(out.CustomLangs, cfg.CustomLangs) ||
		!slices.Equal(out.TopicPermissions, cfg.TopicPermissions) ||
		len(out.FromMap) != len(cfg.FromMap)
	if !changed {
		for k, v := range out.FromMap {
			if cfg.FromMap[k] != v {
				changed = true
				break
			}
		}
	}
	return out, changed
}

// Run checks for a version change and runs Sync if needed.
// Returns (invoked, error): invoked is true if Sync ran.
func Run(ctx context.Context, newVersion string) (bool, error) {
	stored, err := store.GetKey(systemVersionKey)
	if err != nil && !store.IsNotFound(err) {
		logger.Error("progressor_read_version_failed", "error", err)
		return false, err
	}
	logger.Info("progressor_version_check", "stored", stored, "running", newVersion)
	if stored == newVersion {
		logger.Info("progressor_noop", "version", newVersion)
		return false, nil
	}

	if prev, err := store.GetKey(systemInProgressKey); err == nil {
		logger.Warn("progressor_resuming_interrupted_migration", "marker", prev)
	}
	marker := map[string]string{
		"from":       stored,
		"to":         newVersion,
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	mb, _ := json.Marshal(marker)
	if err := store.SaveKey(systemInProgressKey, mb); err != nil {
		return true, fmt.Errorf("failed to write in-progress marker: %w", err)
	}

	if err := Sync(ctx, stored, newVersion); err != nil {
		logger.Error("progressor_sync_failed", "from", stored, "to", newVersion, "error", err)
		return true, err
	}

	if err := store.SaveKey(systemVersionKey, []byte(newVersion)); err != nil {
		return true, fmt.Errorf("failed to persist new version: %w", err)
	}
	if err := store.DeleteKey(systemInProgressKey); err != nil {
		logger.Error("progressor_delete_inprogress_failed", "error", err)
	}
	logger.Info("progressor_version_persisted", "version", newVersion)
	return true, nil
}
