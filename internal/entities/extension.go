package entities

import (
	"time"
)

const DefaultBookType = 1

// BookExtension is the application-side row kept 1:1 with a catalog book. The
// mirrored fields hold the last catalog state the extension store observed and are
// what reconciliation compares against.
type BookExtension struct {
	BookID           int64      `gorm:"column:book_id;primaryKey;autoIncrement:false" json:"book_id"`
	BookType         int        `gorm:"column:book_type" json:"book_type"`
	PageCount        int        `gorm:"column:page_count" json:"page_count"`
	StandardPrice    float64    `gorm:"column:standard_price" json:"standard_price"`
	PurchasePrice    float64    `gorm:"column:purchase_price" json:"purchase_price"`
	PurchaseDate     *time.Time `gorm:"column:purchase_date" json:"purchase_date,omitempty"`
	Binding1         string     `gorm:"column:binding1" json:"binding1,omitempty"`
	Binding2         string     `gorm:"column:binding2" json:"binding2,omitempty"`
	Note             string     `gorm:"column:note" json:"note,omitempty"`
	TotalReadingTime int64      `gorm:"column:total_reading_time" json:"total_reading_time"`
	ReadPages        int        `gorm:"column:read_pages" json:"read_pages"`
	ReadingCount     int        `gorm:"column:reading_count" json:"reading_count"`
	LastReadDate     *time.Time `gorm:"column:last_read_date" json:"last_read_date,omitempty"`
	LastReadDuration int64      `gorm:"column:last_read_duration" json:"last_read_duration"`

	Title        string    `gorm:"column:title" json:"-"`
	Author       string    `gorm:"column:author" json:"-"`
	ISBN         string    `gorm:"column:isbn" json:"-"`
	Publisher    string    `gorm:"column:publisher" json:"-"`
	Language     string    `gorm:"column:language" json:"-"`
	Rating       int       `gorm:"column:rating" json:"-"`
	HasCover     bool      `gorm:"column:has_cover" json:"-"`
	LastModified time.Time `gorm:"column:last_modified" json:"last_modified"`
}

func (BookExtension) TableName() string { return "book_extensions" }

type ReadState string

const (
	ReadStateUnread   ReadState = "unread"
	ReadStateReading  ReadState = "reading"
	ReadStateFinished ReadState = "finished"
)

func (s ReadState) Valid() bool {
	switch s {
	case ReadStateUnread, ReadStateReading, ReadStateFinished:
		return true
	}
	return false
}

type ReadingState struct {
	BookID       int64      `gorm:"column:book_id;primaryKey;autoIncrement:false" json:"book_id"`
	ReaderID     string     `gorm:"column:reader_id;primaryKey" json:"reader_id"`
	Favorite     bool       `gorm:"column:favorite" json:"favorite"`
	FavoriteDate *time.Time `gorm:"column:favorite_date" json:"favorite_date,omitempty"`
	Wants        bool       `gorm:"column:wants" json:"wants"`
	WantsDate    *time.Time `gorm:"column:wants_date" json:"wants_date,omitempty"`
	ReadState    ReadState  `gorm:"column:read_state" json:"read_state"`
	ReadDate     *time.Time `gorm:"column:read_date" json:"read_date,omitempty"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ReadingState) TableName() string { return "reading_states" }

type ReadingSession struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BookID    int64     `gorm:"column:book_id" json:"book_id"`
	ReaderID  string    `gorm:"column:reader_id" json:"reader_id"`
	StartTime time.Time `gorm:"column:start_time" json:"start_time"`
	EndTime   time.Time `gorm:"column:end_time" json:"end_time"`
	Duration  int64     `gorm:"column:duration" json:"duration"` // seconds
	StartPage int       `gorm:"column:start_page" json:"start_page"`
	EndPage   int       `gorm:"column:end_page" json:"end_page"`
	PagesRead int       `gorm:"column:pages_read" json:"pages_read"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ReadingSession) TableName() string { return "reading_sessions" }

type DailyReadingStat struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReaderID     string `gorm:"column:reader_id" json:"reader_id"`
	Date         string `gorm:"column:date" json:"date"` // YYYY-MM-DD
	TotalSeconds int64  `gorm:"column:total_seconds" json:"total_seconds"`
	PagesRead    int    `gorm:"column:pages_read" json:"pages_read"`
	Sessions     int    `gorm:"column:sessions" json:"sessions"`
}

func (DailyReadingStat) TableName() string { return "daily_reading_stats" }

type Group struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Group) TableName() string { return "groups" }

type BookGroupMembership struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BookID    int64     `gorm:"column:book_id" json:"book_id"`
	GroupID   int64     `gorm:"column:group_id" json:"group_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (BookGroupMembership) TableName() string { return "book_group_memberships" }

type Bookmark struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	BookID     int64     `gorm:"column:book_id" json:"book_id"`
	ReaderID   string    `gorm:"column:reader_id" json:"reader_id"`
	Page       int       `gorm:"column:page" json:"page"`
	Note       string    `gorm:"column:note" json:"note"`
	BookTitle  string    `gorm:"column:book_title" json:"book_title"`
	BookAuthor string    `gorm:"column:book_author" json:"book_author"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	Tags       []string  `gorm:"-" json:"tags"`
}

func (Bookmark) TableName() string { return "bookmarks" }

type BookmarkTag struct {
	BookmarkID int64  `gorm:"column:bookmark_id;primaryKey;autoIncrement:false"`
	Tag        string `gorm:"column:tag;primaryKey"`
}

func (BookmarkTag) TableName() string { return "bookmark_tags" }

type ReadingGoal struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReaderID    string    `gorm:"column:reader_id" json:"reader_id"`
	Year        int       `gorm:"column:year" json:"year"`
	TargetBooks int       `gorm:"column:target_books" json:"target_books"`
	TargetPages int       `gorm:"column:target_pages" json:"target_pages"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ReadingGoal) TableName() string { return "reading_goals" }

type WishlistItem struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReaderID  string    `gorm:"column:reader_id" json:"reader_id"`
	ISBN      string    `gorm:"column:isbn" json:"isbn"`
	Title     string    `gorm:"column:title" json:"title"`
	Author    string    `gorm:"column:author" json:"author"`
	Note      string    `gorm:"column:note" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }

type HeatmapCell struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReaderID string `gorm:"column:reader_id" json:"reader_id"`
	Date     string `gorm:"column:date" json:"date"`
	Seconds  int64  `gorm:"column:seconds" json:"seconds"`
	Pages    int    `gorm:"column:pages" json:"pages"`
}

func (HeatmapCell) TableName() string { return "heatmap_cells" }
