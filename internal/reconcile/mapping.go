package reconcile

import (
	"fmt"
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
	"github.com/mrlokans/shelfsync/internal/library"
)

type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
)

// FieldMapping declares one field shared by both sides of a store pair.
type FieldMapping struct {
	Name     string
	Type     FieldType
	Default  any
	Required bool
}

// Mapping is the declared field set of a store pair.
type Mapping []FieldMapping

// Field names shared by the stores.
const (
	FieldTitle     = "title"
	FieldAuthor    = "author"
	FieldISBN      = "isbn"
	FieldPublisher = "publisher"
	FieldLanguage  = "language"
	FieldRating    = "rating"
	FieldHasCover  = "has_cover"
)

// LibraryMapping covers catalog <-> library. Title and author are part of the
// path key, so only the cover flag is compared.
var LibraryMapping = Mapping{
	{Name: FieldHasCover, Type: FieldBool, Default: false, Required: true},
}

// ExtensionMapping covers catalog <-> extension mirror columns.
var ExtensionMapping = Mapping{
	{Name: FieldTitle, Type: FieldString, Default: library.UntitledBook, Required: true},
	{Name: FieldAuthor, Type: FieldString, Default: library.UnknownAuthor, Required: true},
	{Name: FieldISBN, Type: FieldString, Default: ""},
	{Name: FieldPublisher, Type: FieldString, Default: ""},
	{Name: FieldLanguage, Type: FieldString, Default: ""},
	{Name: FieldRating, Type: FieldInt, Default: 0},
	{Name: FieldHasCover, Type: FieldBool, Default: false, Required: true},
}

// Record is one side's view of a book for a given pair. Fields only holds the
// fields that side actually knows.
type Record struct {
	Key          string
	BookID       int64
	Path         string
	Fields       map[string]any
	LastModified time.Time
}

// Validate checks field types against the mapping and fills required defaults.
func (m Mapping) Validate(r *Record) error {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	for _, f := range m {
		v, ok := r.Fields[f.Name]
		if !ok {
			if f.Required {
				r.Fields[f.Name] = f.Default
			}
			continue
		}
		if !f.accepts(v) {
			return entities.NewValidationError(f.Name, "want %s, got %T", f.Type, v)
		}
	}
	return nil
}

func (f FieldMapping) accepts(v any) bool {
	switch f.Type {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldInt:
		_, ok := v.(int)
		return ok
	case FieldBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// Merge overlays priority on other: fields present in priority win, fields only
// in other are kept, and missing required fields take their default. The merged
// record carries the later of the two timestamps.
func (m Mapping) Merge(priority, other Record) Record {
	out := Record{
		Key:          priority.Key,
		BookID:       priority.BookID,
		Path:         priority.Path,
		Fields:       make(map[string]any, len(m)),
		LastModified: laterOf(priority.LastModified, other.LastModified),
	}
	if out.BookID == 0 {
		out.BookID = other.BookID
	}
	if out.Path == "" {
		out.Path = other.Path
	}
	for _, f := range m {
		if v, ok := priority.Fields[f.Name]; ok {
			out.Fields[f.Name] = v
		} else if v, ok := other.Fields[f.Name]; ok {
			out.Fields[f.Name] = v
		} else if f.Required {
			out.Fields[f.Name] = f.Default
		}
	}
	return out
}

// Equal compares the mapped fields of two records.
func (m Mapping) Equal(a, b Record) bool {
	for _, f := range m {
		av, aok := a.Fields[f.Name]
		bv, bok := b.Fields[f.Name]
		if aok != bok || av != bv {
			return false
		}
	}
	return true
}

// Resolve picks the record both sides should hold after a conflict. It is a pure
// function of its inputs; the result always carries the later timestamp so both
// sides end up aligned.
func (m Mapping) Resolve(policy Policy, src, dst Record) (Record, error) {
	var out Record
	switch policy {
	case KeepSource:
		out = m.Merge(src, Record{})
	case KeepTarget:
		out = m.Merge(dst, Record{})
	case MergeSourcePriority:
		out = m.Merge(src, dst)
	case MergeTargetPriority:
		out = m.Merge(dst, src)
	case UseLatestModified:
		if dst.LastModified.After(src.LastModified) {
			out = m.Merge(dst, Record{})
		} else {
			out = m.Merge(src, Record{})
		}
	default:
		return Record{}, fmt.Errorf("unknown policy %q", policy)
	}
	out.LastModified = laterOf(src.LastModified, dst.LastModified)
	if out.BookID == 0 {
		out.BookID = firstID(src.BookID, dst.BookID)
	}
	return out, nil
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func firstID(a, b int64) int64 {
	if a != 0 {
		return a
	}
	return b
}

// Stamp normalizes a timestamp to the granularity used for comparisons.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// SameStamp compares two timestamps at second granularity.
func SameStamp(a, b time.Time) bool {
	return Stamp(a).Equal(Stamp(b))
}
