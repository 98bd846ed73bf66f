// Package chatcfg owns per-chat settings: loading them with defaults,
// checking admin rights and applying the /ch12* admin commands.
package chatcfg

import (
	"context"
	"fmt"

	"transrelay/pkg/keylock"
	"transrelay/pkg/logger"
	"transrelay/pkg/models"
	"transrelay/pkg/telegram"
)

// Store persists chat settings. store.ChatConfigs satisfies it.
type Store interface {
	Load(ctx context.Context, chatID int64) (models.ChatConfig, bool, error)
	Save(ctx context.Context, chatID int64, cfg models.ChatConfig) error
}

// AdminLister lists a chat's administrators. *telegram.Client satisfies it.
type AdminLister interface {
	GetChatAdministrators(ctx context.Context, chatID int64) ([]telegram.ChatMember, error)
}

type Collaborator struct {
	store   Store
	admins  AdminLister
	primary string
	locks   keylock.Map[int64, struct{}]
}

// New builds a collaborator. primary is the language that is always
// rendered and therefore cannot be toggled as a button.
func New(store Store, admins AdminLister, primary string) *Collaborator {
	return &Collaborator{store: store, admins: admins, primary: primary}
}

// GetConfig returns the chat's settings, or the defaults when none were
// saved or the store failed.
func (c *Collaborator) GetConfig(ctx context.Context, chatID int64) models.ChatConfig {
	cfg, found, err := c.store.Load(ctx, chatID)
	if err != nil {
		logger.Warn("chat_config_load_failed", "chat", chatID, "error", err)
		return models.DefaultChatConfig()
	}
	if !found {
		return models.DefaultChatConfig()
	}
	cfg.Normalize()
	return cfg
}

// IsAdmin reports whether user administers chat. A private chat is owned
// by its only user. Lookup failures deny.
func (c *Collaborator) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	if chatID == userID {
		return true
	}
	members, err := c.admins.GetChatAdministrators(ctx, chatID)
	if err != nil {
		logger.Warn("get_admins_failed", "chat", chatID, "error", err)
		return false
	}
	for _, m := range members {
		if m.User.ID == userID && m.IsAdmin() {
			return true
		}
	}
	return false
}

// Update applies fn to the chat's settings under a per-chat lock and saves
// the result when fn reports a change.
func (c *Collaborator) Update(ctx context.Context, chatID int64, fn func(*models.ChatConfig) (bool, error)) (models.ChatConfig, error) {
	g := c.locks.Lock(chatID)
	defer g.Unlock()

	cfg, found, err := c.store.Load(ctx, chatID)
	if err != nil {
		return cfg, fmt.Errorf("load chat config: %w", err)
	}
	if !found {
		cfg = models.DefaultChatConfig()
	}
	cfg.Normalize()
	changed, err := fn(&cfg)
	if err != nil || !changed {
		return cfg, err
	}
	if err := c.store.Save(ctx, chatID, cfg); err != nil {
		return cfg, fmt.Errorf("save chat config: %w", err)
	}
	return cfg, nil
}
