package library

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	UnknownAuthor = "Unknown"
	UntitledBook  = "Untitled"

	maxSegmentRunes = 100
)

var (
	// Characters invalid in path segments on most filesystems, separators included
	invalidSegmentChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multipleSpaces      = regexp.MustCompile(`\s+`)
)

// SanitizeSegment turns a display name into a single directory name. The result
// never contains a path separator, never is "." or "..", and is stable when
// sanitized again. Empty results fall back to the given placeholder.
func SanitizeSegment(name, fallback string) string {
	name = invalidSegmentChars.ReplaceAllString(name, "_")
	name = multipleSpaces.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if runes := []rune(name); len(runes) > maxSegmentRunes {
		name = strings.Trim(string(runes[:maxSegmentRunes]), " .")
	}

	if name == "" {
		return fallback
	}
	return name
}

// BookPath derives the library-relative path of a book: author directory, then
// title directory. It always has exactly two segments joined by "/".
func BookPath(author, title string) string {
	return SanitizeSegment(author, UnknownAuthor) + "/" + SanitizeSegment(title, UntitledBook)
}

// SplitBookPath returns the two segments of a book path or an error if the
// path does not have that shape.
func SplitBookPath(bookPath string) (author, title string, err error) {
	parts := strings.Split(bookPath, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("book path %q must have exactly two segments", bookPath)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return "", "", fmt.Errorf("book path %q has an invalid segment %q", bookPath, p)
		}
	}
	return parts[0], parts[1], nil
}
