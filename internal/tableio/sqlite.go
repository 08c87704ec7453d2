package tableio

import (
	"database/sql"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

func openSQLite(path string) (*sql.DB, error) {
	// sql.Open would create a missing file.
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	return db, nil
}

func sqliteTables(path string) ([]string, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return listTables(db, path)
}

func listTables(db *sql.DB, path string) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
	if err != nil {
		return nil, errors.NewParseError("sqlite", path, "listing tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewParseError("sqlite", path, "listing tables", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func readSQLite(path, table string) (*types.Table, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := listTables(db, path)
	if err != nil {
		return nil, err
	}
	switch {
	case table == "" && len(tables) == 0:
		return nil, errors.NewParseError("sqlite", path, "database has no tables", nil)
	case table == "":
		table = tables[0]
	case !contains(tables, table):
		return nil, errors.NewNotFoundError("table", table)
	}

	rows, err := db.Query("SELECT * FROM " + quoteIdent(table))
	if err != nil {
		return nil, errors.NewParseError("sqlite", path, "reading table "+table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewParseError("sqlite", path, "reading table "+table, err)
	}
	names := normalizeHeaders(cols)

	t := types.NewTable(names...)
	t.Name = table
	t.Format = types.FormatSQLite

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewParseError("sqlite", path, "reading table "+table, err)
		}
		values := make([]types.Value, len(cols))
		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			values[i] = v
		}
		t.AppendRow(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewParseError("sqlite", path, "reading table "+table, err)
	}
	return t, nil
}

// WriteSQLite replaces the database at path with one holding t as table.
// Columns are untyped so values keep their storage class.
func WriteSQLite(path, table string, t *types.Table) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("remove", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer db.Close()

	quoted := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	create := "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(quoted, ", ") + ")"
	if _, err := db.Exec(create); err != nil {
		return errors.NewIOError("write", path, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewIOError("write", path, err)
	}
	defer tx.Rollback()

	insert := "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return errors.NewIOError("write", path, err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		args := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			if v := row[c]; !types.IsMissing(v) {
				args[i] = v
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return errors.NewIOError("write", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
