package catalog

import (
	"strings"
)

var leadingArticles = []string{"the ", "a ", "an "}

// TitleSort moves a leading English article to the end: "The Hobbit" becomes
// "Hobbit, The". It is also registered as the title_sort SQL function.
func TitleSort(title string) string {
	title = strings.TrimSpace(title)
	lower := strings.ToLower(title)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) && len(title) > len(article) {
			return strings.TrimSpace(title[len(article):]) + ", " + strings.TrimSpace(title[:len(article)])
		}
	}
	return title
}

// AuthorSort produces "Last, First" for a single name.
func AuthorSort(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return strings.TrimSpace(name)
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

// AuthorsSort joins the sort form of each author the way the catalog stores it.
func AuthorsSort(names []string) string {
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		sorted = append(sorted, AuthorSort(n))
	}
	return strings.Join(sorted, " & ")
}

// JoinAuthors flattens an author list to the single string mirrored in the
// extension store.
func JoinAuthors(names []string) string {
	return strings.Join(names, " & ")
}

// SplitAuthors is the inverse of JoinAuthors.
func SplitAuthors(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "&") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
