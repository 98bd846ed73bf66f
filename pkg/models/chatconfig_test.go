package models

import (
	"encoding/json"
	"testing"
)

func TestChatConfigCloneIsDeep(t *testing.T) {
	a := DefaultChatConfig()
	a.FromMap["alice"] = "Sales"
	a.TopicPermissions = []int64{5}

	b := a.Clone()
	b.FromMap["alice"] = "Ops"
	b.CustomLangs[0] = "de"
	b.TopicPermissions[0] = 9

	if a.FromMap["alice"] != "Sales" || a.CustomLangs[0] != "en" || a.TopicPermissions[0] != 5 {
		t.Fatalf("clone shares state with the original: %+v", a)
	}
}

func TestNormalizeAfterDecode(t *testing.T) {
	var c ChatConfig
	if err := json.Unmarshal([]byte(`{"compact_mode":false}`), &c); err != nil {
		t.Fatal(err)
	}
	c.Normalize()
	if c.FromMap == nil || len(c.CustomLangs) != len(DefaultLangs) || c.CompactMode {
		t.Fatalf("unexpected normalized config %+v", c)
	}
	if c.TopicAllowed(3) {
		t.Fatalf("no topics should be allowed by default")
	}
	c.TopicPermissions = []int64{3}
	if !c.TopicAllowed(3) {
		t.Fatalf("topic 3 should be allowed")
	}
}
