package render

import "testing"

func TestHeader(t *testing.T) {
	if got := Header("Alice", ""); got != "<b>Alice</b>" {
		t.Fatalf("Header = %q", got)
	}
	if got := Header("👤@bob", "Sales & Ops"); got != "<b>👤@bob - From Sales &amp; Ops</b>" {
		t.Fatalf("Header with label = %q", got)
	}
	if got := Escape("a<b>&c"); got != "a&lt;b&gt;&amp;c" {
		t.Fatalf("Escape = %q", got)
	}
}
