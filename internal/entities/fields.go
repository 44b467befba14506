package entities

import (
	"regexp"
	"strings"
	"time"
)

const MaxRating = 10

var identifierTypePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// BookFields is the input for creating or updating a book. Nil pointers and nil
// slices leave the stored value untouched on update.
type BookFields struct {
	Title       *string           `json:"title"`
	Authors     []string          `json:"authors"`
	Identifiers map[string]string `json:"identifiers"`
	Publisher   *string           `json:"publisher"`
	Language    *string           `json:"language"`
	Series      *string           `json:"series"`
	SeriesIndex *float64          `json:"series_index"`
	Rating      *int              `json:"rating"`
	Tags        []string          `json:"tags"`
	Comment     *string           `json:"comment"`
	Cover       []byte            `json:"cover"` // base64 in JSON
	Extension   *ExtensionFields  `json:"extension"`
	Groups      []int64           `json:"groups"`
}

// ExtensionFields are the application-owned attributes written to the extension store.
type ExtensionFields struct {
	BookType      *int       `json:"book_type"`
	PageCount     *int       `json:"page_count"`
	StandardPrice *float64   `json:"standard_price"`
	PurchasePrice *float64   `json:"purchase_price"`
	PurchaseDate  *time.Time `json:"purchase_date"`
	Binding1      *string    `json:"binding1"`
	Binding2      *string    `json:"binding2"`
	Note          *string    `json:"note"`
}

// ValidateCreate checks a create request. A title is mandatory.
func (f *BookFields) ValidateCreate() error {
	if f.Title == nil || strings.TrimSpace(*f.Title) == "" {
		return NewValidationError("title", "is required")
	}
	return f.validate()
}

// ValidateUpdate checks an update request; only supplied fields are checked.
func (f *BookFields) ValidateUpdate() error {
	if f.Title != nil && strings.TrimSpace(*f.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}
	return f.validate()
}

func (f *BookFields) validate() error {
	if f.Rating != nil && (*f.Rating < 0 || *f.Rating > MaxRating) {
		return NewValidationError("rating", "must be between 0 and %d, got %d", MaxRating, *f.Rating)
	}
	for typ, val := range f.Identifiers {
		if err := ValidateIdentifier(typ, val); err != nil {
			return err
		}
	}
	for _, tag := range f.Tags {
		if strings.TrimSpace(tag) == "" {
			return NewValidationError("tags", "must not contain empty entries")
		}
	}
	for _, a := range f.Authors {
		if strings.TrimSpace(a) == "" {
			return NewValidationError("authors", "must not contain empty names")
		}
	}
	if f.SeriesIndex != nil && *f.SeriesIndex < 0 {
		return NewValidationError("series_index", "must not be negative")
	}
	if f.Extension != nil {
		if err := f.Extension.validate(); err != nil {
			return err
		}
	}
	for _, id := range f.Groups {
		if id <= 0 {
			return NewValidationError("groups", "invalid group id %d", id)
		}
	}
	return nil
}

func (e *ExtensionFields) validate() error {
	if e.BookType != nil && *e.BookType < 0 {
		return NewValidationError("extension.book_type", "must not be negative")
	}
	if e.PageCount != nil && *e.PageCount < 0 {
		return NewValidationError("extension.page_count", "must not be negative")
	}
	if e.StandardPrice != nil && *e.StandardPrice < 0 {
		return NewValidationError("extension.standard_price", "must not be negative")
	}
	if e.PurchasePrice != nil && *e.PurchasePrice < 0 {
		return NewValidationError("extension.purchase_price", "must not be negative")
	}
	return nil
}

// ValidateIdentifier checks a typed identifier. Types are lowercase tokens;
// values cannot carry the separators the catalog uses when it flattens identifiers.
func ValidateIdentifier(typ, val string) error {
	if !identifierTypePattern.MatchString(typ) {
		return NewValidationError("identifiers", "malformed identifier type %q", typ)
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return NewValidationError("identifiers", "empty value for %q", typ)
	}
	if strings.ContainsAny(val, ",:") {
		return NewValidationError("identifiers", "value for %q contains a separator", typ)
	}
	if typ == IdentifierISBN && !ValidISBN(val) {
		return NewValidationError("identifiers", "malformed isbn %q", val)
	}
	return nil
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing check character.
func NormalizeISBN(isbn string) string {
	r := strings.NewReplacer("-", "", " ", "")
	return strings.ToUpper(r.Replace(isbn))
}

// ValidISBN accepts ISBN-10 (last character may be X) and ISBN-13 shapes.
func ValidISBN(isbn string) bool {
	s := NormalizeISBN(isbn)
	switch len(s) {
	case 10:
		for i, c := range s {
			if c >= '0' && c <= '9' {
				continue
			}
			if c == 'X' && i == 9 {
				continue
			}
			return false
		}
		return true
	case 13:
		for _, c := range s {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	}
	return false
}
