package entities

import (
	"time"
)

// Catalog tables follow the Calibre layout so an existing library database can be
// opened in place. Column names are spelled out because the catalog schema is owned
// by another application.

type CatalogBook struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title        string     `gorm:"column:title"`
	Sort         string     `gorm:"column:sort"`
	AuthorSort   string     `gorm:"column:author_sort"`
	Timestamp    time.Time  `gorm:"column:timestamp"`
	PubDate      *time.Time `gorm:"column:pubdate"`
	SeriesIndex  float64    `gorm:"column:series_index"`
	Path         string     `gorm:"column:path"`
	UUID         string     `gorm:"column:uuid"`
	HasCover     bool       `gorm:"column:has_cover"`
	LastModified time.Time  `gorm:"column:last_modified"`
}

func (CatalogBook) TableName() string { return "books" }

type CatalogAuthor struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name"`
	Sort string `gorm:"column:sort"`
}

func (CatalogAuthor) TableName() string { return "authors" }

type CatalogPublisher struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name"`
}

func (CatalogPublisher) TableName() string { return "publishers" }

type CatalogLanguage struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	LangCode string `gorm:"column:lang_code"`
}

func (CatalogLanguage) TableName() string { return "languages" }

type CatalogSeries struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name"`
}

func (CatalogSeries) TableName() string { return "series" }

type CatalogTag struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name"`
}

func (CatalogTag) TableName() string { return "tags" }

type CatalogRating struct {
	ID     int64 `gorm:"column:id;primaryKey;autoIncrement"`
	Rating int   `gorm:"column:rating"`
}

func (CatalogRating) TableName() string { return "ratings" }

type CatalogIdentifier struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Book int64  `gorm:"column:book"`
	Type string `gorm:"column:type"`
	Val  string `gorm:"column:val"`
}

func (CatalogIdentifier) TableName() string { return "identifiers" }

type CatalogComment struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Book int64  `gorm:"column:book"`
	Text string `gorm:"column:text"`
}

func (CatalogComment) TableName() string { return "comments" }

// Book is the assembled catalog view of one book: the books row plus everything
// linked to it.
type Book struct {
	ID           int64             `json:"id"`
	UUID         string            `json:"uuid"`
	Title        string            `json:"title"`
	Authors      []string          `json:"authors"`
	Identifiers  map[string]string `json:"identifiers"`
	Publisher    string            `json:"publisher,omitempty"`
	Language     string            `json:"language,omitempty"`
	Series       string            `json:"series,omitempty"`
	SeriesIndex  float64           `json:"series_index,omitempty"`
	Rating       int               `json:"rating"`
	Tags         []string          `json:"tags"`
	Comment      string            `json:"comment,omitempty"`
	Path         string            `json:"path"`
	HasCover     bool              `json:"has_cover"`
	LastModified time.Time         `json:"last_modified"`
}

// PrimaryAuthor returns the first listed author, the one the library path is built from.
func (b *Book) PrimaryAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// ISBN returns the isbn identifier if present.
func (b *Book) ISBN() string {
	return b.Identifiers[IdentifierISBN]
}

const IdentifierISBN = "isbn"

// EnrichedBook joins a catalog book with extension rows and file library facts.
type EnrichedBook struct {
	Book
	BookType     int            `json:"book_type"`
	Extension    *BookExtension `json:"extension,omitempty"`
	Groups       []Group        `json:"groups"`
	ReadingState *ReadingState  `json:"reading_state,omitempty"`
	CoverExists  bool           `json:"cover_exists"`
	CoverURL     string         `json:"cover_url,omitempty"`
}

type BookFilter struct {
	Query  string `form:"q"`
	Tag    string `form:"tag"`
	Author string `form:"author"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
