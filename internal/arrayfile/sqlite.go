package arrayfile

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite layout: a hierarchical relational encoding of the same dataset.
// Variables, their dimensions, coordinate labels and flattened values
// each live in their own table, so any SQL client can slice an artifact
// without this package.

const sqliteSchema = `
CREATE TABLE attrs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE variables (
	name TEXT PRIMARY KEY,
	pos  INTEGER NOT NULL
);
CREATE TABLE dims (
	var  TEXT NOT NULL,
	pos  INTEGER NOT NULL,
	name TEXT NOT NULL,
	size INTEGER NOT NULL,
	PRIMARY KEY (var, pos)
);
CREATE TABLE coords (
	dim   TEXT NOT NULL,
	idx   INTEGER NOT NULL,
	label TEXT NOT NULL,
	PRIMARY KEY (dim, idx)
);
CREATE TABLE var_values (
	var   TEXT NOT NULL,
	idx   INTEGER NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (var, idx)
);
`

func writeSQLite(path string, ds *Dataset) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range ds.Attrs {
		if _, err := tx.Exec(`INSERT INTO attrs (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing attr %q: %w", k, err)
		}
	}
	for dim, labels := range ds.Coords {
		for i, label := range labels {
			if _, err := tx.Exec(`INSERT INTO coords (dim, idx, label) VALUES (?, ?, ?)`, dim, i, label); err != nil {
				return fmt.Errorf("writing coords for %q: %w", dim, err)
			}
		}
	}

	insertValue, err := tx.Prepare(`INSERT INTO var_values (var, idx, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing value insert: %w", err)
	}
	defer insertValue.Close()

	for pos := range ds.Vars {
		v := &ds.Vars[pos]
		if _, err := tx.Exec(`INSERT INTO variables (name, pos) VALUES (?, ?)`, v.Name, pos); err != nil {
			return fmt.Errorf("writing variable %q: %w", v.Name, err)
		}
		for d := range v.Dims {
			if _, err := tx.Exec(`INSERT INTO dims (var, pos, name, size) VALUES (?, ?, ?, ?)`,
				v.Name, d, v.Dims[d], v.Shape[d]); err != nil {
				return fmt.Errorf("writing dims of %q: %w", v.Name, err)
			}
		}
		for i, val := range v.Values {
			if _, err := insertValue.Exec(v.Name, i, val); err != nil {
				return fmt.Errorf("writing values of %q: %w", v.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", path, err)
	}
	return nil
}

func readSQLite(path string) (*Dataset, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	defer db.Close()

	ds := &Dataset{
		Attrs:  map[string]string{},
		Coords: map[string][]string{},
	}

	rows, err := db.Query(`SELECT key, value FROM attrs`)
	if err != nil {
		return nil, fmt.Errorf("reading attrs: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, err
		}
		ds.Attrs[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading attrs: %w", err)
	}

	rows, err = db.Query(`SELECT dim, label FROM coords ORDER BY dim, idx`)
	if err != nil {
		return nil, fmt.Errorf("reading coords: %w", err)
	}
	for rows.Next() {
		var dim, label string
		if err := rows.Scan(&dim, &label); err != nil {
			rows.Close()
			return nil, err
		}
		ds.Coords[dim] = append(ds.Coords[dim], label)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading coords: %w", err)
	}

	rows, err = db.Query(`SELECT name FROM variables ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("reading variables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading variables: %w", err)
	}

	for _, name := range names {
		v := Variable{Name: name}

		dimRows, err := db.Query(`SELECT name, size FROM dims WHERE var = ? ORDER BY pos`, name)
		if err != nil {
			return nil, fmt.Errorf("reading dims of %q: %w", name, err)
		}
		for dimRows.Next() {
			var dim string
			var size int
			if err := dimRows.Scan(&dim, &size); err != nil {
				dimRows.Close()
				return nil, err
			}
			v.Dims = append(v.Dims, dim)
			v.Shape = append(v.Shape, size)
		}
		dimRows.Close()
		if err := dimRows.Err(); err != nil {
			return nil, fmt.Errorf("reading dims of %q: %w", name, err)
		}

		valRows, err := db.Query(`SELECT value FROM var_values WHERE var = ? ORDER BY idx`, name)
		if err != nil {
			return nil, fmt.Errorf("reading values of %q: %w", name, err)
		}
		for valRows.Next() {
			var val float64
			if err := valRows.Scan(&val); err != nil {
				valRows.Close()
				return nil, err
			}
			v.Values = append(v.Values, val)
		}
		valRows.Close()
		if err := valRows.Err(); err != nil {
			return nil, fmt.Errorf("reading values of %q: %w", name, err)
		}

		ds.Vars = append(ds.Vars, v)
	}
	return ds, nil
}
