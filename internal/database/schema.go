package database

import (
	"fmt"
	"strings"
)

// Column declares one expected column. Def is the full column definition as it
// appears in CREATE TABLE; Fill is the literal used for NULLs when rows are copied
// into a rebuilt table.
type Column struct {
	Name string
	Def  string
	Fill string
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// TableSpec is the declared shape of one extension store table.
type TableSpec struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Unique      [][]string
	ForeignKeys []ForeignKey
	Indexes     [][]string
	// Core tables must be usable for the store to be considered available.
	Core bool
}

const epoch = `'1970-01-01 00:00:00+00:00'`

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// CreateSQL renders the CREATE TABLE statement for the spec.
func (t TableSpec) CreateSQL() string {
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, quote(c.Name)+" "+c.Def)
	}
	if len(t.PrimaryKey) > 1 {
		lines = append(lines, "PRIMARY KEY ("+quoteList(t.PrimaryKey)+")")
	}
	for _, u := range t.Unique {
		lines = append(lines, "UNIQUE ("+quoteList(u)+")")
	}
	for _, fk := range t.ForeignKeys {
		line := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", quote(fk.Column), quote(fk.RefTable), quote(fk.RefColumn))
		if fk.OnDelete != "" {
			line += " ON DELETE " + fk.OnDelete
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(t.Name), strings.Join(lines, ",\n\t"))
}

// IndexSQL renders CREATE INDEX statements for the plain indexes.
func (t TableSpec) IndexSQL() []string {
	var stmts []string
	for _, cols := range t.Indexes {
		name := fmt.Sprintf("idx_%s_%s", t.Name, strings.Join(cols, "_"))
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quote(name), quote(t.Name), quoteList(cols)))
	}
	return stmts
}

func (t TableSpec) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// addable reports whether ALTER TABLE ADD COLUMN can add the column.
func (c Column) addable() bool {
	def := strings.ToUpper(c.Def)
	if strings.Contains(def, "PRIMARY KEY") || strings.Contains(def, "UNIQUE") {
		return false
	}
	if strings.Contains(def, "NOT NULL") && !strings.Contains(def, "DEFAULT") {
		return false
	}
	return !strings.Contains(def, "CURRENT_")
}

func quoteList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quote(c)
	}
	return strings.Join(q, ", ")
}

func idColumn() Column {
	return Column{Name: "id", Def: "INTEGER PRIMARY KEY AUTOINCREMENT"}
}

func intCol(name string) Column {
	return Column{Name: name, Def: "INTEGER NOT NULL DEFAULT 0", Fill: "0"}
}

func textCol(name string) Column {
	return Column{Name: name, Def: "TEXT NOT NULL DEFAULT ''", Fill: "''"}
}

func timeCol(name string) Column {
	return Column{Name: name, Def: "DATETIME NOT NULL DEFAULT " + epoch, Fill: epoch}
}

func nullTimeCol(name string) Column {
	return Column{Name: name, Def: "DATETIME"}
}

func readerCol() Column {
	return Column{Name: "reader_id", Def: "TEXT NOT NULL DEFAULT 'default'", Fill: "'default'"}
}

func bookIDCol() Column {
	return Column{Name: "book_id", Def: "INTEGER NOT NULL"}
}

// ExtensionSchema is the expected shape of the extension store.
var ExtensionSchema = []TableSpec{
	{
		Name: "book_extensions",
		Core: true,
		Columns: []Column{
			{Name: "book_id", Def: "INTEGER PRIMARY KEY"},
			{Name: "book_type", Def: "INTEGER NOT NULL DEFAULT 1", Fill: "1"},
			intCol("page_count"),
			{Name: "standard_price", Def: "REAL NOT NULL DEFAULT 0", Fill: "0"},
			{Name: "purchase_price", Def: "REAL NOT NULL DEFAULT 0", Fill: "0"},
			nullTimeCol("purchase_date"),
			textCol("binding1"),
			textCol("binding2"),
			textCol("note"),
			intCol("total_reading_time"),
			intCol("read_pages"),
			intCol("reading_count"),
			nullTimeCol("last_read_date"),
			intCol("last_read_duration"),
			textCol("title"),
			textCol("author"),
			textCol("isbn"),
			textCol("publisher"),
			textCol("language"),
			intCol("rating"),
			{Name: "has_cover", Def: "BOOLEAN NOT NULL DEFAULT 0", Fill: "0"},
			timeCol("last_modified"),
		},
		PrimaryKey: []string{"book_id"},
	},
	{
		Name: "reading_states",
		Core: true,
		Columns: []Column{
			bookIDCol(),
			readerCol(),
			{Name: "favorite", Def: "BOOLEAN NOT NULL DEFAULT 0", Fill: "0"},
			nullTimeCol("favorite_date"),
			{Name: "wants", Def: "BOOLEAN NOT NULL DEFAULT 0", Fill: "0"},
			nullTimeCol("wants_date"),
			{Name: "read_state", Def: "TEXT NOT NULL DEFAULT 'unread'", Fill: "'unread'"},
			nullTimeCol("read_date"),
			timeCol("updated_at"),
		},
		PrimaryKey: []string{"book_id", "reader_id"},
	},
	{
		Name: "reading_sessions",
		Columns: []Column{
			idColumn(),
			bookIDCol(),
			readerCol(),
			timeCol("start_time"),
			timeCol("end_time"),
			intCol("duration"),
			intCol("start_page"),
			intCol("end_page"),
			intCol("pages_read"),
			timeCol("created_at"),
		},
		PrimaryKey: []string{"id"},
		Indexes:    [][]string{{"book_id"}, {"reader_id"}},
	},
	{
		Name: "daily_reading_stats",
		Columns: []Column{
			idColumn(),
			readerCol(),
			{Name: "date", Def: "TEXT NOT NULL"},
			intCol("total_seconds"),
			intCol("pages_read"),
			intCol("sessions"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"reader_id", "date"}},
	},
	{
		Name: "groups",
		Columns: []Column{
			idColumn(),
			{Name: "name", Def: "TEXT NOT NULL"},
			textCol("description"),
			timeCol("created_at"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"name"}},
	},
	{
		Name: "book_group_memberships",
		Columns: []Column{
			idColumn(),
			bookIDCol(),
			{Name: "group_id", Def: "INTEGER NOT NULL"},
			timeCol("created_at"),
		},
		PrimaryKey:  []string{"id"},
		Unique:      [][]string{{"book_id", "group_id"}},
		ForeignKeys: []ForeignKey{{Column: "group_id", RefTable: "groups", RefColumn: "id", OnDelete: "CASCADE"}},
		Indexes:     [][]string{{"book_id"}},
	},
	{
		Name: "bookmarks",
		Columns: []Column{
			idColumn(),
			bookIDCol(),
			readerCol(),
			intCol("page"),
			textCol("note"),
			textCol("book_title"),
			textCol("book_author"),
			timeCol("created_at"),
		},
		PrimaryKey: []string{"id"},
		Indexes:    [][]string{{"book_id"}},
	},
	{
		Name: "bookmark_tags",
		Columns: []Column{
			{Name: "bookmark_id", Def: "INTEGER NOT NULL"},
			{Name: "tag", Def: "TEXT NOT NULL"},
		},
		PrimaryKey:  []string{"bookmark_id", "tag"},
		ForeignKeys: []ForeignKey{{Column: "bookmark_id", RefTable: "bookmarks", RefColumn: "id", OnDelete: "CASCADE"}},
	},
	{
		Name: "reading_goals",
		Columns: []Column{
			idColumn(),
			readerCol(),
			{Name: "year", Def: "INTEGER NOT NULL"},
			intCol("target_books"),
			intCol("target_pages"),
			timeCol("updated_at"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"reader_id", "year"}},
	},
	{
		Name: "wishlist_items",
		Columns: []Column{
			idColumn(),
			readerCol(),
			{Name: "isbn", Def: "TEXT NOT NULL"},
			textCol("title"),
			textCol("author"),
			textCol("note"),
			timeCol("created_at"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"reader_id", "isbn"}},
	},
	{
		Name: "heatmap_cells",
		Columns: []Column{
			idColumn(),
			readerCol(),
			{Name: "date", Def: "TEXT NOT NULL"},
			intCol("seconds"),
			intCol("pages"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"reader_id", "date"}},
	},
	{
		Name: "sync_intents",
		Columns: []Column{
			idColumn(),
			textCol("book_uuid"),
			intCol("book_id"),
			textCol("book_path"),
			{Name: "operation", Def: "TEXT NOT NULL DEFAULT 'create'", Fill: "'create'"},
			timeCol("created_at"),
		},
		PrimaryKey: []string{"id"},
		Indexes:    [][]string{{"book_uuid"}},
	},
	{
		Name: "sync_progress",
		Columns: []Column{
			idColumn(),
			{Name: "sync_type", Def: "TEXT NOT NULL"},
			textCol("status"),
			intCol("total_items"),
			intCol("processed"),
			intCol("succeeded"),
			intCol("failed"),
			intCol("skipped"),
			textCol("current_item"),
			textCol("error"),
			timeCol("started_at"),
			timeCol("updated_at"),
			nullTimeCol("completed_at"),
		},
		PrimaryKey: []string{"id"},
		Unique:     [][]string{{"sync_type"}},
	},
	{
		Name: "sync_runs",
		Columns: []Column{
			idColumn(),
			textCol("direction"),
			textCol("policy"),
			intCol("synced"),
			intCol("failed"),
			intCol("conflicted"),
			intCol("skipped"),
			intCol("deleted"),
			intCol("intents_replayed"),
			textCol("errors"),
			timeCol("started_at"),
			timeCol("finished_at"),
		},
		PrimaryKey: []string{"id"},
		Indexes:    [][]string{{"started_at"}},
	},
}
