package chatcfg

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"transrelay/pkg/langs"
	"transrelay/pkg/logger"
	"transrelay/pkg/models"
	"transrelay/pkg/notice"
)

const (
	CmdFromOn      = "/ch12from_on"
	CmdFromOff     = "/ch12from_off"
	CmdFromList    = "/ch12from_list"
	CmdTopicOn     = "/ch12topic_on"
	CmdTopicOff    = "/ch12topic_off"
	CmdCompactOn   = "/ch12compact_on"
	CmdCompactOff  = "/ch12compact_off"
	CmdLanguageOn  = "/ch12language_on"
	CmdLanguageOff = "/ch12language_off"
)

// Command is a parsed admin command. ReplyThreadID is the forum thread of
// the message the command replied to, 0 when it was not a reply or the
// replied message sits outside a topic.
type Command struct {
	ChatID        int64
	UserID        int64
	Name          string
	Arg           string
	IsReply       bool
	ReplyThreadID int64
}

// IsCommand reports whether name is one of the settings commands.
func IsCommand(name string) bool {
	switch name {
	case CmdFromOn, CmdFromOff, CmdFromList, CmdTopicOn, CmdTopicOff,
		CmdCompactOn, CmdCompactOff, CmdLanguageOn, CmdLanguageOff:
		return true
	}
	return false
}

var errUsage = errors.New("usage")

// Handle executes cmd and returns the reply to post. handled is false when
// cmd is not a settings command.
func (c *Collaborator) Handle(ctx context.Context, cmd Command) (reply string, handled bool) {
	if !IsCommand(cmd.Name) {
		return "", false
	}
	if cmd.Name == CmdFromList {
		return c.fromList(ctx, cmd.ChatID), true
	}
	if !c.IsAdmin(ctx, cmd.ChatID, cmd.UserID) {
		return notice.T("❌ This command is for group administrators only."), true
	}

	var msg string
	_, err := c.Update(ctx, cmd.ChatID, func(cfg *models.ChatConfig) (bool, error) {
		var changed bool
		var err error
		msg, changed, err = c.apply(cfg, cmd)
		return changed, err
	})
	switch {
	case errors.Is(err, errUsage):
		return msg, true
	case err != nil:
		logger.Error("chat_config_update_failed", "chat", cmd.ChatID, "command", cmd.Name, "error", err)
		return notice.T("❌ Could not save the settings."), true
	}
	logger.Info("chat_config_command", "chat", cmd.ChatID, "user", cmd.UserID, "command", cmd.Name)
	return msg, true
}

func (c *Collaborator) apply(cfg *models.ChatConfig, cmd Command) (string, bool, error) {
	switch cmd.Name {
	case CmdFromOn:
		user, label, _ := strings.Cut(cmd.Arg, " ")
		user = normalizeUser(user)
		label = strings.Trim(strings.TrimSpace(label), `"`)
		if user == "" || label == "" {
			return notice.T("⚠️ Usage: /ch12from_on <username> <label>\nExample: /ch12from_on Ch12_09 \"Cao Huy\""), false, errUsage
		}
		cfg.FromMap[user] = label
		return notice.T("✅ From for @%s set to: %s", user, label), true, nil

	case CmdFromOff:
		user := normalizeUser(firstField(cmd.Arg))
		if user == "" {
			return notice.T("⚠️ Usage: /ch12from_off <username>\nExample: /ch12from_off Ch12_09"), false, errUsage
		}
		if _, ok := cfg.FromMap[user]; !ok {
			return notice.T("ℹ️ No mapping found for @%s", user), false, nil
		}
		delete(cfg.FromMap, user)
		return notice.T("✅ Removed the mapping for @%s", user), true, nil

	case CmdTopicOn, CmdTopicOff:
		if !cmd.IsReply {
			return notice.T("⚠️ Reply to a message inside the topic you want to enable or disable."), false, errUsage
		}
		if cmd.ReplyThreadID == 0 {
			return notice.T("⚠️ No topic found. Make sure you reply to a message inside a topic."), false, errUsage
		}
		id := cmd.ReplyThreadID
		has := slices.Contains(cfg.TopicPermissions, id)
		if cmd.Name == CmdTopicOn {
			if has {
				return notice.T("ℹ️ Topic %d is already enabled.", id), false, nil
			}
			cfg.TopicPermissions = append(cfg.TopicPermissions, id)
			return notice.T("✅ Translation enabled in topic %d.", id), true, nil
		}
		if !has {
			return notice.T("ℹ️ Topic %d is not enabled.", id), false, nil
		}
		cfg.TopicPermissions = slices.DeleteFunc(cfg.TopicPermissions, func(t int64) bool { return t == id })
		return notice.T("✅ Translation disabled in topic %d.", id), true, nil

	case CmdCompactOn:
		cfg.CompactMode = true
		return notice.T("✅ Compact mode on."), true, nil
	case CmdCompactOff:
		cfg.CompactMode = false
		return notice.T("✅ Compact mode off."), true, nil

	case CmdLanguageOn, CmdLanguageOff:
		code := langs.Normalize(firstField(cmd.Arg))
		if code == "" {
			return notice.T("⚠️ Usage: /ch12language_on <lang> or /ch12language_off <lang>"), false, errUsage
		}
		upper := strings.ToUpper(code)
		if code == c.primary {
			return notice.T("ℹ️ %s is always translated automatically (no button needed).", upper), false, nil
		}
		if !langs.Valid(code) {
			return notice.T("⚠️ Unknown language code: %s", code), false, errUsage
		}
		has := slices.Contains(cfg.CustomLangs, code)
		if cmd.Name == CmdLanguageOn {
			if has {
				return notice.T("ℹ️ %s already exists.", upper), false, nil
			}
			cfg.CustomLangs = append(cfg.CustomLangs, code)
			return notice.T("✅ Added the %s translate button.", upper), true, nil
		}
		if !has {
			return notice.T("ℹ️ %s does not exist.", upper), false, nil
		}
		cfg.CustomLangs = slices.DeleteFunc(cfg.CustomLangs, func(l string) bool { return l == code })
		return notice.T("✅ Removed the %s translate button.", upper), true, nil
	}
	return "", false, nil
}

func (c *Collaborator) fromList(ctx context.Context, chatID int64) string {
	cfg := c.GetConfig(ctx, chatID)
	if len(cfg.FromMap) == 0 {
		return notice.T("❗ No mappings in this chat yet.")
	}
	users := make([]string, 0, len(cfg.FromMap))
	for u := range cfg.FromMap {
		users = append(users, u)
	}
	sort.Strings(users)
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, u+" -> "+cfg.FromMap[u])
	}
	return notice.T("Mappings (username -> label):") + "\n" + strings.Join(lines, "\n")
}

// LabelFor returns the "From" label mapped to username, "" when unmapped.
func LabelFor(cfg models.ChatConfig, username string) string {
	return cfg.FromMap[normalizeUser(username)]
}

func normalizeUser(u string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
