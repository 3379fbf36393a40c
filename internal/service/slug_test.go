package service

import (
	"strings"
	"testing"
)

func TestDeriveSlug(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Hello, World!!", "hello-world"},
		{"  Fall 2026  Admissions ", "fall-2026-admissions"},
		{"---", ""},
		{"Campus Life: Arts & Culture", "campus-life-arts-culture"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER CASE", "upper-case"},
	}

	for _, tc := range cases {
		if got := DeriveSlug(tc.title); got != tc.want {
			t.Fatalf("DeriveSlug(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestDeriveSlugIdempotent(t *testing.T) {
	inputs := []string{
		"Hello, World!!",
		"New Engineering Building Opens",
		"",
		"50% off!!! (not really)",
	}

	for _, input := range inputs {
		once := DeriveSlug(input)
		if twice := DeriveSlug(once); twice != once {
			t.Fatalf("DeriveSlug not idempotent for %q: %q != %q", input, twice, once)
		}
	}
}

func TestStampSlugKeepsBase(t *testing.T) {
	stamped := StampSlug("orientation-week")
	if !strings.HasPrefix(stamped, "orientation-week-") {
		t.Fatalf("expected stamped slug to keep base, got %q", stamped)
	}
	if stamped == "orientation-week-" {
		t.Fatalf("expected non-empty stamp suffix")
	}
}
