package normalize

import (
	"regexp"
	"testing"
)

func TestNameExamples(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Joe's Pizza & Pasta", "joes pizza and pasta"},
		{"CAFÉ HABANA", "cafe habana"},
		{"Wo-Hop/Chinatown", "wo hop chinatown"},
		{"M.K. Restaurant", "mk restaurant"},
		{"  Le   Père  Pinard ", "le pere pinard"},
		{"#1 Garden Chinese!!", "1 garden chinese"},
		{"", ""},
		{"!!!...", ""},
		{"ñoño", "nono"},
	}
	for _, c := range cases {
		if got := Name(c.in); got != c.want {
			t.Fatalf("Name(%q): want=%q got=%q", c.in, c.want, got)
		}
	}
}

func TestNameIdempotent(t *testing.T) {
	inputs := []string{
		"Joe's Pizza & Pasta",
		"CAFÉ HABANA",
		"a&b&c",
		"x / y - z",
		"&&&",
		"日本語レストラン",
	}
	for _, in := range inputs {
		once := Name(in)
		twice := Name(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNameOutputAlphabet(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9 ]*$`)
	inputs := []string{
		"Joe's Pizza & Pasta",
		"ÀÉÎÖÜ çñ",
		"tabs\tand\nnewlines",
		"100% Köln/Berlin--Mitte",
		"'''",
	}
	for _, in := range inputs {
		got := Name(in)
		if !valid.MatchString(got) {
			t.Fatalf("Name(%q) produced invalid chars: %q", in, got)
		}
		if len(got) > 0 && (got[0] == ' ' || got[len(got)-1] == ' ') {
			t.Fatalf("Name(%q) not trimmed: %q", in, got)
		}
		if regexp.MustCompile(`  `).MatchString(got) {
			t.Fatalf("Name(%q) has doubled spaces: %q", in, got)
		}
	}
}
