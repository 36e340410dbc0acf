package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SchemaSource reads table, view and procedure metadata from a relational
// store. MySQL is read through INFORMATION_SCHEMA; SQLite through
// sqlite_master. Excluded schemas never enter the snapshot.
type SchemaSource struct {
	DB              *gorm.DB
	Databases       []string
	ExcludedSchemas []string
	MaxRows         int
	QueryTimeout    time.Duration
}

type schemaTableRow struct {
	TableSchema  string `gorm:"column:TABLE_SCHEMA"`
	TableName    string `gorm:"column:TABLE_NAME"`
	TableType    string `gorm:"column:TABLE_TYPE"`
	TableComment string `gorm:"column:TABLE_COMMENT"`
}

type schemaColumnRow struct {
	TableSchema   string `gorm:"column:TABLE_SCHEMA"`
	TableName     string `gorm:"column:TABLE_NAME"`
	ColumnName    string `gorm:"column:COLUMN_NAME"`
	DataType      string `gorm:"column:DATA_TYPE"`
	IsNullable    string `gorm:"column:IS_NULLABLE"`
	ColumnComment string `gorm:"column:COLUMN_COMMENT"`
}

type schemaViewRow struct {
	TableSchema    string `gorm:"column:TABLE_SCHEMA"`
	TableName      string `gorm:"column:TABLE_NAME"`
	ViewDefinition string `gorm:"column:VIEW_DEFINITION"`
}

type schemaRoutineRow struct {
	RoutineSchema     string `gorm:"column:ROUTINE_SCHEMA"`
	RoutineName       string `gorm:"column:ROUTINE_NAME"`
	RoutineDefinition string `gorm:"column:ROUTINE_DEFINITION"`
}

type sqliteMasterRow struct {
	Name string `gorm:"column:name"`
	Type string `gorm:"column:type"`
	SQL  string `gorm:"column:sql"`
}

type sqliteColumnRow struct {
	Name    string `gorm:"column:name"`
	Type    string `gorm:"column:type"`
	NotNull int    `gorm:"column:notnull"`
}

func (s *SchemaSource) Fetch(ctx context.Context) ([]SchemaObject, error) {
	if s.DB == nil {
		return nil, ErrNoSource
	}
	if s.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.QueryTimeout)
		defer cancel()
	}

	var (
		objs []SchemaObject
		err  error
	)
	switch name := s.DB.Dialector.Name(); name {
	case "mysql":
		objs, err = s.fetchMySQL(ctx)
	case "sqlite":
		objs, err = s.fetchSQLite(ctx)
	default:
		return nil, fmt.Errorf("schema source: unsupported dialect %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("schema source: %w", err)
	}

	objs = s.filter(objs)
	if s.MaxRows > 0 && len(objs) > s.MaxRows {
		objs = objs[:s.MaxRows]
	}
	return objs, nil
}

func (s *SchemaSource) fetchMySQL(ctx context.Context) ([]SchemaObject, error) {
	db := s.DB.WithContext(ctx)
	scope := func(q *gorm.DB, col string) *gorm.DB {
		if len(s.ExcludedSchemas) > 0 {
			q = q.Where(col+" NOT IN ?", s.ExcludedSchemas)
		}
		if len(s.Databases) > 0 {
			q = q.Where(col+" IN ?", s.Databases)
		}
		return q
	}

	var tables []schemaTableRow
	q := scope(db.Table("INFORMATION_SCHEMA.TABLES").
		Select("TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE, TABLE_COMMENT"), "TABLE_SCHEMA").
		Order("TABLE_SCHEMA, TABLE_NAME")
	if s.MaxRows > 0 {
		q = q.Limit(s.MaxRows)
	}
	if err := q.Scan(&tables).Error; err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}

	var cols []schemaColumnRow
	if err := scope(db.Table("INFORMATION_SCHEMA.COLUMNS").
		Select("TABLE_SCHEMA, TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_COMMENT"), "TABLE_SCHEMA").
		Order("TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION").
		Scan(&cols).Error; err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var views []schemaViewRow
	if err := scope(db.Table("INFORMATION_SCHEMA.VIEWS").
		Select("TABLE_SCHEMA, TABLE_NAME, VIEW_DEFINITION"), "TABLE_SCHEMA").
		Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}

	var routines []schemaRoutineRow
	rq := scope(db.Table("INFORMATION_SCHEMA.ROUTINES").
		Select("ROUTINE_SCHEMA, ROUTINE_NAME, ROUTINE_DEFINITION").
		Where("ROUTINE_TYPE = ?", "PROCEDURE"), "ROUTINE_SCHEMA").
		Order("ROUTINE_SCHEMA, ROUTINE_NAME")
	if s.MaxRows > 0 {
		rq = rq.Limit(s.MaxRows)
	}
	if err := rq.Scan(&routines).Error; err != nil {
		return nil, fmt.Errorf("routines: %w", err)
	}

	key := func(schema, name string) string { return schema + "." + name }

	colsByTable := make(map[string][]Column)
	for _, c := range cols {
		k := key(c.TableSchema, c.TableName)
		colsByTable[k] = append(colsByTable[k], Column{
			Name:        c.ColumnName,
			Type:        c.DataType,
			Nullable:    strings.EqualFold(c.IsNullable, "YES"),
			Description: c.ColumnComment,
		})
	}
	viewDefs := make(map[string]string, len(views))
	for _, v := range views {
		viewDefs[key(v.TableSchema, v.TableName)] = v.ViewDefinition
	}

	out := make([]SchemaObject, 0, len(tables)+len(routines))
	for _, t := range tables {
		k := key(t.TableSchema, t.TableName)
		kind := KindTable
		if strings.EqualFold(t.TableType, "VIEW") {
			kind = KindView
		}
		out = append(out, SchemaObject{
			ID:          k,
			Database:    t.TableSchema,
			Schema:      t.TableSchema,
			Kind:        kind,
			Name:        t.TableName,
			Columns:     colsByTable[k],
			Definition:  viewDefs[k],
			Description: t.TableComment,
		})
	}
	for _, r := range routines {
		out = append(out, SchemaObject{
			ID:         key(r.RoutineSchema, r.RoutineName),
			Database:   r.RoutineSchema,
			Schema:     r.RoutineSchema,
			Kind:       KindProcedure,
			Name:       r.RoutineName,
			Definition: r.RoutineDefinition,
		})
	}
	return out, nil
}

func (s *SchemaSource) fetchSQLite(ctx context.Context) ([]SchemaObject, error) {
	db := s.DB.WithContext(ctx)

	var master []sqliteMasterRow
	q := db.Raw("SELECT name, type, sql FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err := q.Scan(&master).Error; err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}

	database := "main"
	if len(s.Databases) > 0 {
		database = s.Databases[0]
	}

	out := make([]SchemaObject, 0, len(master))
	for _, m := range master {
		if s.MaxRows > 0 && len(out) >= s.MaxRows {
			break
		}
		var cols []sqliteColumnRow
		if err := db.Raw("SELECT name, type, \"notnull\" FROM pragma_table_info(?)", m.Name).Scan(&cols).Error; err != nil {
			return nil, fmt.Errorf("columns of %s: %w", m.Name, err)
		}
		obj := SchemaObject{
			ID:       database + ".main." + m.Name,
			Database: database,
			Schema:   "main",
			Kind:     KindTable,
			Name:     m.Name,
		}
		if m.Type == "view" {
			obj.Kind = KindView
			obj.Definition = m.SQL
		}
		for _, c := range cols {
			obj.Columns = append(obj.Columns, Column{Name: c.Name, Type: strings.ToLower(c.Type), Nullable: c.NotNull == 0})
		}
		out = append(out, obj)
	}
	return out, nil
}

// filter drops excluded schemas and restores a stable order.
func (s *SchemaSource) filter(objs []SchemaObject) []SchemaObject {
	if len(s.ExcludedSchemas) > 0 {
		kept := objs[:0]
		for _, o := range objs {
			if !containsFold(s.ExcludedSchemas, o.Schema) {
				kept = append(kept, o)
			}
		}
		objs = kept
	}
	sort.SliceStable(objs, func(i, j int) bool {
		if objs[i].Schema != objs[j].Schema {
			return objs[i].Schema < objs[j].Schema
		}
		return objs[i].Name < objs[j].Name
	})
	return objs
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}
