package models

import "slices"

// DefaultLangs is the language keyboard a chat gets until an admin edits it.
var DefaultLangs = []string{"en", "ru", "ar", "vi", "ja", "th", "zh"}

// ChatConfig holds per-chat settings managed by admin commands.
type ChatConfig struct {
	// FromMap maps a lower-cased username (without '@') to a "From" label.
	FromMap          map[string]string `json:"from_map"`
	CustomLangs      []string          `json:"custom_langs"`
	CompactMode      bool              `json:"compact_mode"`
	TopicPermissions []int64           `json:"topic_permissions"`
}

// DefaultChatConfig returns the settings used for chats without stored config.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		FromMap:     map[string]string{},
		CustomLangs: slices.Clone(DefaultLangs),
		CompactMode: true,
	}
}

// Normalize fills nil collections so callers can mutate without checks.
func (c *ChatConfig) Normalize() {
	if c.FromMap == nil {
		c.FromMap = map[string]string{}
	}
	if c.CustomLangs == nil {
		c.CustomLangs = slices.Clone(DefaultLangs)
	}
}

// TopicAllowed reports whether messages in forum thread id are relayed.
func (c ChatConfig) TopicAllowed(threadID int64) bool {
	return slices.Contains(c.TopicPermissions, threadID)
}

// Clone returns a deep copy.
func (c ChatConfig) Clone() ChatConfig {
	out := c
	out.FromMap = make(map[string]string, len(c.FromMap))
	for k, v := range c.FromMap {
		out.FromMap[k] = v
	}
	out.CustomLangs = slices.Clone(c.CustomLangs)
	out.TopicPermissions = slices.Clone(c.TopicPermissions)
	return out
}
