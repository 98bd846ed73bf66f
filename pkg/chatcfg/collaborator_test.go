package chatcfg

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"transrelay/pkg/models"
	"transrelay/pkg/telegram"
)

type memStore struct {
	mu    sync.Mutex
	m     map[int64]models.ChatConfig
	saves int
	fail  error
}

func newMemStore() *memStore { return &memStore{m: map[int64]models.ChatConfig{}} }

func (s *memStore) Load(ctx context.Context, chatID int64) (models.ChatConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return models.ChatConfig{}, false, s.fail
	}
	cfg, ok := s.m[chatID]
	return cfg.Clone(), ok, nil
}

func (s *memStore) Save(ctx context.Context, chatID int64, cfg models.ChatConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.m[chatID] = cfg.Clone()
	return nil
}

type fakeAdmins struct {
	ids []int64
	err error
}

func (f fakeAdmins) GetChatAdministrators(ctx context.Context, chatID int64) ([]telegram.ChatMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]telegram.ChatMember, 0, len(f.ids))
	for _, id := range f.ids {
		out = append(out, telegram.ChatMember{Status: "administrator", User: telegram.User{ID: id}})
	}
	return out, nil
}

const chat = -100

func TestGetConfigDefaults(t *testing.T) {
	st := newMemStore()
	c := New(st, fakeAdmins{}, "vi")
	cfg := c.GetConfig(context.Background(), chat)
	if !cfg.CompactMode || !slices.Equal(cfg.CustomLangs, models.DefaultLangs) || cfg.FromMap == nil {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	st.fail = errors.New("disk gone")
	cfg = c.GetConfig(context.Background(), chat)
	if !cfg.CompactMode {
		t.Fatalf("store failure should yield defaults")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	c := New(newMemStore(), fakeAdmins{ids: []int64{1, 2}}, "vi")
	if !c.IsAdmin(ctx, chat, 2) || c.IsAdmin(ctx, chat, 3) {
		t.Fatalf("admin lookup wrong")
	}
	if !c.IsAdmin(ctx, 55, 55) {
		t.Fatalf("private chat owner should be admin")
	}
	c = New(newMemStore(), fakeAdmins{err: errors.New("boom")}, "vi")
	if c.IsAdmin(ctx, chat, 1) {
		t.Fatalf("lookup failure must deny")
	}
}

func TestNonAdminRejected(t *testing.T) {
	st := newMemStore()
	c := New(st, fakeAdmins{ids: []int64{1}}, "vi")
	reply, handled := c.Handle(context.Background(), Command{ChatID: chat, UserID: 9, Name: CmdCompactOff})
	if !handled || !strings.HasPrefix(reply, "❌") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if st.saves != 0 {
		t.Fatalf("nothing should be saved")
	}
}

func TestFromCommands(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	c := New(st, fakeAdmins{ids: []int64{1}}, "vi")

	reply, _ := c.Handle(ctx, Command{ChatID: chat, UserID: 9, Name: CmdFromList})
	if !strings.HasPrefix(reply, "❗") {
		t.Fatalf("empty list reply %q", reply)
	}

	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdFromOn, Arg: `@Ch12_09 "Cao Huy"`})
	if !strings.Contains(reply, "@ch12_09") || !strings.Contains(reply, "Cao Huy") {
		t.Fatalf("from_on reply %q", reply)
	}
	cfg := c.GetConfig(ctx, chat)
	if LabelFor(cfg, "CH12_09") != "Cao Huy" {
		t.Fatalf("label not stored: %+v", cfg.FromMap)
	}

	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 9, Name: CmdFromList})
	if !strings.Contains(reply, "ch12_09 -> Cao Huy") {
		t.Fatalf("list reply %q", reply)
	}

	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdFromOn, Arg: "onlyuser"})
	if !strings.HasPrefix(reply, "⚠️") {
		t.Fatalf("usage expected, got %q", reply)
	}

	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdFromOff, Arg: "nobody"})
	if !strings.HasPrefix(reply, "ℹ️") {
		t.Fatalf("missing mapping reply %q", reply)
	}
	saves := st.saves
	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdFromOff, Arg: "ch12_09"})
	if st.saves != saves+1 || LabelFor(c.GetConfig(ctx, chat), "ch12_09") != "" {
		t.Fatalf("mapping not removed")
	}
}

func TestTopicCommands(t *testing.T) {
	ctx := context.Background()
	c := New(newMemStore(), fakeAdmins{ids: []int64{1}}, "vi")

	reply, _ := c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOn})
	if !strings.HasPrefix(reply, "⚠️") {
		t.Fatalf("reply required: %q", reply)
	}
	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOn, IsReply: true})
	if !strings.HasPrefix(reply, "⚠️") {
		t.Fatalf("thread required: %q", reply)
	}

	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOn, IsReply: true, ReplyThreadID: 42})
	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOn, IsReply: true, ReplyThreadID: 42})
	if !strings.HasPrefix(reply, "ℹ️") {
		t.Fatalf("already enabled expected: %q", reply)
	}
	if cfg := c.GetConfig(ctx, chat); !cfg.TopicAllowed(42) || len(cfg.TopicPermissions) != 1 {
		t.Fatalf("topic not stored once: %+v", cfg.TopicPermissions)
	}

	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOff, IsReply: true, ReplyThreadID: 42})
	if c.GetConfig(ctx, chat).TopicAllowed(42) {
		t.Fatalf("topic should be disabled")
	}
}

func TestCompactAndLanguageCommands(t *testing.T) {
	ctx := context.Background()
	c := New(newMemStore(), fakeAdmins{ids: []int64{1}}, "vi")

	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdCompactOff})
	if c.GetConfig(ctx, chat).CompactMode {
		t.Fatalf("compact should be off")
	}
	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdCompactOn})
	if !c.GetConfig(ctx, chat).CompactMode {
		t.Fatalf("compact should be on")
	}

	reply, _ := c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdLanguageOff, Arg: "VI"})
	if !strings.HasPrefix(reply, "ℹ️") || !slices.Contains(c.GetConfig(ctx, chat).CustomLangs, "vi") {
		t.Fatalf("primary toggle reply %q", reply)
	}

	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdLanguageOn, Arg: "ko"})
	c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdLanguageOff, Arg: "ru"})
	got := c.GetConfig(ctx, chat).CustomLangs
	want := []string{"en", "ar", "vi", "ja", "th", "zh", "ko"}
	if !slices.Equal(got, want) {
		t.Fatalf("langs %v want %v", got, want)
	}

	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdLanguageOn, Arg: "not-a-lang!"})
	if !strings.HasPrefix(reply, "⚠️") {
		t.Fatalf("invalid code reply %q", reply)
	}
	reply, _ = c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdLanguageOn})
	if !strings.HasPrefix(reply, "⚠️") {
		t.Fatalf("usage reply %q", reply)
	}
}

func TestHandleIgnoresOtherCommands(t *testing.T) {
	c := New(newMemStore(), fakeAdmins{}, "vi")
	if _, handled := c.Handle(context.Background(), Command{Name: "/report_start"}); handled {
		t.Fatalf("foreign command should not be handled")
	}
}

func TestConcurrentUpdatesCompose(t *testing.T) {
	ctx := context.Background()
	c := New(newMemStore(), fakeAdmins{ids: []int64{1}}, "vi")
	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c.Handle(ctx, Command{ChatID: chat, UserID: 1, Name: CmdTopicOn, IsReply: true, ReplyThreadID: id})
		}(i)
	}
	wg.Wait()
	if n := len(c.GetConfig(ctx, chat).TopicPermissions); n != 20 {
		t.Fatalf("expected 20 topics, got %d", n)
	}
}
