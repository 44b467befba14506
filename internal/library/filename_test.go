package library

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "Frank Herbert", "Frank Herbert"},
		{"slash", "AC/DC", "AC_DC"},
		{"backslash", `Back\Slash`, "Back_Slash"},
		{"reserved", `What? "Really"*`, "What_ _Really__"},
		{"collapses whitespace", "Too   many\tspaces", "Too many spaces"},
		{"dot segments", "..", "Untitled"},
		{"leading dots", "...hidden", "hidden"},
		{"empty", "   ", "Untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeSegment(tt.input, UntitledBook))
		})
	}
}

func TestSanitizeSegment_Stable(t *testing.T) {
	inputs := []string{"AC/DC", " a . ", strings.Repeat("x", 150) + " .", "../../etc", "Ünïcödé: title"}
	for _, in := range inputs {
		once := SanitizeSegment(in, UntitledBook)
		assert.Equal(t, once, SanitizeSegment(once, UntitledBook), in)
	}
}

func TestSanitizeSegment_LimitsLength(t *testing.T) {
	got := SanitizeSegment(strings.Repeat("é", 300), UntitledBook)
	assert.Equal(t, maxSegmentRunes, len([]rune(got)))
}

func TestBookPath_AlwaysTwoSegments(t *testing.T) {
	cases := [][2]string{
		{"Frank Herbert", "Dune"},
		{"Author/With/Slashes", "Title/With/Slashes"},
		{`C:\Windows\Author`, "../../passwd"},
		{"", ""},
		{"/", "/"},
	}
	for _, c := range cases {
		p := BookPath(c[0], c[1])
		parts := strings.Split(p, "/")
		require.Len(t, parts, 2, p)
		author, title, err := SplitBookPath(p)
		require.NoError(t, err, p)
		assert.NotEmpty(t, author)
		assert.NotEmpty(t, title)
	}
	assert.Equal(t, "Unknown/Untitled", BookPath("", ""))
}

func TestSplitBookPath_Rejects(t *testing.T) {
	for _, p := range []string{"one", "a/b/c", "../x", "a/", ""} {
		_, _, err := SplitBookPath(p)
		assert.Error(t, err, p)
	}
}
