package langs

import "testing"

func TestFlag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "vi", want: "🇻🇳"},
		{in: " RU ", want: "🇷🇺"},
		{in: "zh_TW", want: "🇹🇼"},
		{in: "pt-BR", want: "🇵🇹"},
		{in: "xx", want: Unknown},
	}
	for _, tc := range cases {
		if got := Flag(tc.in); got != tc.want {
			t.Fatalf("Flag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, ok := range []string{"en", "zh-TW", "fil", "pt_br"} {
		if !Valid(ok) {
			t.Fatalf("Valid(%q) = false", ok)
		}
	}
	for _, bad := range []string{"", "e", "english", "en-", "e1", "zh-t"} {
		if Valid(bad) {
			t.Fatalf("Valid(%q) = true", bad)
		}
	}
}
