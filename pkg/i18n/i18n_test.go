package i18n

import (
	"strings"
	"testing"
)

func TestFallbacks(t *testing.T) {
	if got := T(Tamil, KeyLanguageMenu); !strings.Contains(got, "English") {
		t.Fatalf("Tamil should fall back to the English menu, got %q", got)
	}
	if got := T(English, "no_such_key"); got != "no_such_key" {
		t.Fatalf("missing key rendered as %q", got)
	}
	if T(Tamil, KeyWelcome) == T(English, KeyWelcome) {
		t.Fatal("Tamil welcome should be translated")
	}
}

func TestEveryTamilKeyExistsInEnglish(t *testing.T) {
	for key := range messages[Tamil] {
		if _, ok := messages[English][key]; !ok {
			t.Fatalf("Tamil key %q has no English source", key)
		}
	}
}

func TestFormatting(t *testing.T) {
	if got := Tf(English, KeyNoSellers, "grocery"); !strings.Contains(got, "grocery category") {
		t.Fatalf("unexpected %q", got)
	}
	if strings.Count(T(English, KeyNoSellers), "%s") != strings.Count(T(Tamil, KeyNoSellers), "%s") {
		t.Fatal("translations must take the same arguments")
	}
}

func TestParseLang(t *testing.T) {
	if ParseLang("TA") != Tamil || ParseLang("") != English || ParseLang("hi") != English {
		t.Fatal("ParseLang mapping wrong")
	}
	if l, ok := FromMenu(" 2 "); !ok || l != Tamil {
		t.Fatal("menu 2 should select Tamil")
	}
	if _, ok := FromMenu("3"); ok {
		t.Fatal("3 is not a language")
	}
}
