package database

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// HealReport summarizes what SelfHeal changed.
type HealReport struct {
	Created      []string `json:"created,omitempty"`
	Rebuilt      []string `json:"rebuilt,omitempty"`
	ColumnsAdded []string `json:"columns_added,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	// Fatal is set when a core table could not be brought into shape.
	Fatal error `json:"-"`
}

func (r *HealReport) Changed() bool {
	return len(r.Created)+len(r.Rebuilt)+len(r.ColumnsAdded) > 0
}

type columnInfo struct {
	Name    string
	Type    string
	NotNull bool
	PK      int
}

type foreignKeyInfo struct {
	Table    string
	From     string
	To       string
	OnDelete string
}

// SelfHeal brings the store in line with specs. Missing tables are created,
// missing columns are added with their declared defaults, and tables whose
// primary or foreign keys differ from the declaration are rebuilt in place with
// their rows preserved. Failures on non-core tables are reported but not fatal.
func SelfHeal(db *gorm.DB, specs []TableSpec) *HealReport {
	report := &HealReport{}

	for _, spec := range specs {
		if err := healTable(db, spec, report); err != nil {
			msg := fmt.Sprintf("%s: %v", spec.Name, err)
			report.Errors = append(report.Errors, msg)
			log.Printf("Self-heal: %s", msg)
			if spec.Core && report.Fatal == nil {
				report.Fatal = fmt.Errorf("core table %s unusable: %w", spec.Name, err)
			}
		}
	}

	if report.Changed() {
		log.Printf("Self-heal: created %d, rebuilt %d, added %d columns",
			len(report.Created), len(report.Rebuilt), len(report.ColumnsAdded))
	}
	return report
}

func healTable(db *gorm.DB, spec TableSpec, report *HealReport) error {
	exists, err := tableExists(db, spec.Name)
	if err != nil {
		return err
	}
	if !exists {
		if err := createTable(db, spec); err != nil {
			return err
		}
		report.Created = append(report.Created, spec.Name)
		return nil
	}

	cols, err := tableColumns(db, spec.Name)
	if err != nil {
		return err
	}
	fks, err := tableForeignKeys(db, spec.Name)
	if err != nil {
		return err
	}

	missing, needsRebuild := missingColumns(spec, cols)
	if reason := shapeMismatch(spec, cols, fks); reason != "" || needsRebuild {
		if reason == "" {
			reason = "required columns missing"
		}
		log.Printf("Self-heal: rebuilding %s (%s)", spec.Name, reason)
		if err := rebuildTable(db, spec, cols); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		report.Rebuilt = append(report.Rebuilt, spec.Name)
		return nil
	}

	for _, c := range missing {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(spec.Name), quote(c.Name), c.Def)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("add column %s: %w", c.Name, err)
		}
		report.ColumnsAdded = append(report.ColumnsAdded, spec.Name+"."+c.Name)
	}

	return createIndexes(db, spec)
}

func tableExists(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count).Error
	if err != nil {
		return false, fmt.Errorf("check table: %w", err)
	}
	return count > 0, nil
}

func createTable(db *gorm.DB, spec TableSpec) error {
	if err := db.Exec(spec.CreateSQL()).Error; err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return createIndexes(db, spec)
}

func createIndexes(db *gorm.DB, spec TableSpec) error {
	for _, stmt := range spec.IndexSQL() {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func tableColumns(db *gorm.DB, name string) ([]columnInfo, error) {
	rows, err := db.Raw("PRAGMA table_info(" + quote(name) + ")").Rows()
	if err != nil {
		return nil, fmt.Errorf("table_info: %w", err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid     int
			c       columnInfo
			notNull int
			dflt    sql.NullString
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &c.PK); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func tableForeignKeys(db *gorm.DB, name string) ([]foreignKeyInfo, error) {
	rows, err := db.Raw("PRAGMA foreign_key_list(" + quote(name) + ")").Rows()
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list: %w", err)
	}
	defer rows.Close()

	var fks []foreignKeyInfo
	for rows.Next() {
		var (
			id, seq                  int
			fk                       foreignKeyInfo
			to                       sql.NullString
			onUpdate, onDel, matchTy string
		)
		if err := rows.Scan(&id, &seq, &fk.Table, &fk.From, &to, &onUpdate, &onDel, &matchTy); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list: %w", err)
		}
		fk.To = to.String
		fk.OnDelete = onDel
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// shapeMismatch returns a description of how the key shape differs, or "".
func shapeMismatch(spec TableSpec, cols []columnInfo, fks []foreignKeyInfo) string {
	var pk []columnInfo
	for _, c := range cols {
		if c.PK > 0 {
			pk = append(pk, c)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].PK < pk[j].PK })

	if len(pk) != len(spec.PrimaryKey) {
		return fmt.Sprintf("primary key has %d columns, want %d", len(pk), len(spec.PrimaryKey))
	}
	for i, c := range pk {
		if !strings.EqualFold(c.Name, spec.PrimaryKey[i]) {
			return fmt.Sprintf("primary key column %s, want %s", c.Name, spec.PrimaryKey[i])
		}
	}

	want := make(map[string]bool, len(spec.ForeignKeys))
	for _, fk := range spec.ForeignKeys {
		want[fkKey(fk.Column, fk.RefTable, fk.OnDelete)] = true
	}
	have := make(map[string]bool, len(fks))
	for _, fk := range fks {
		have[fkKey(fk.From, fk.Table, fk.OnDelete)] = true
	}
	for k := range want {
		if !have[k] {
			return "missing foreign key " + k
		}
	}
	for k := range have {
		if !want[k] {
			return "unexpected foreign key " + k
		}
	}
	return ""
}

func fkKey(from, table, onDelete string) string {
	if onDelete == "" {
		onDelete = "NO ACTION"
	}
	return strings.ToLower(from) + "->" + strings.ToLower(table) + " on delete " + strings.ToUpper(onDelete)
}

// missingColumns returns declared columns absent from the table. The second
// result is true when one of them cannot be added with ALTER TABLE.
func missingColumns(spec TableSpec, cols []columnInfo) ([]Column, bool) {
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[strings.ToLower(c.Name)] = true
	}
	var missing []Column
	rebuild := false
	for _, c := range spec.Columns {
		if present[strings.ToLower(c.Name)] {
			continue
		}
		if !c.addable() {
			rebuild = true
		}
		missing = append(missing, c)
	}
	return missing, rebuild
}

// rebuildTable replaces a wrongly shaped table: rename old, create correct,
// copy rows, drop old. All of it runs on one connection inside one transaction
// with foreign key enforcement off so dropping the old table cascades nowhere.
func rebuildTable(db *gorm.DB, spec TableSpec, oldCols []columnInfo) error {
	oldName := spec.Name + "_old"

	var targets, sources []string
	for _, oc := range oldCols {
		c, ok := spec.column(oc.Name)
		if !ok {
			continue
		}
		targets = append(targets, quote(c.Name))
		if c.Fill != "" {
			sources = append(sources, fmt.Sprintf("COALESCE(%s, %s)", quote(oc.Name), c.Fill))
		} else {
			sources = append(sources, quote(oc.Name))
		}
	}

	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
			return err
		}
		defer conn.Exec("PRAGMA foreign_keys = ON")

		// Keep references from other tables pointing at the name, not the renamed table
		if err := conn.Exec("PRAGMA legacy_alter_table = ON").Error; err != nil {
			return err
		}
		defer conn.Exec("PRAGMA legacy_alter_table = OFF")

		return conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(oldName))).Error; err != nil {
				return err
			}
			if err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(spec.Name), quote(oldName))).Error; err != nil {
				return fmt.Errorf("rename: %w", err)
			}
			if err := tx.Exec(spec.CreateSQL()).Error; err != nil {
				return fmt.Errorf("create: %w", err)
			}
			if len(targets) > 0 {
				copySQL := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) SELECT %s FROM %s",
					quote(spec.Name), strings.Join(targets, ", "), strings.Join(sources, ", "), quote(oldName))
				if err := tx.Exec(copySQL).Error; err != nil {
					return fmt.Errorf("copy rows: %w", err)
				}
			}
			if err := tx.Exec(fmt.Sprintf("DROP TABLE %s", quote(oldName))).Error; err != nil {
				return fmt.Errorf("drop old: %w", err)
			}
			return createIndexes(tx, spec)
		})
	})
}
