package docstore

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Schema steps are numbered NNN_description.sql. The highest applied step is
// kept in SQLite's user_version header field.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

type schemaStep struct {
	version int
	name    string
	stmts   string
}

func schemaSteps() ([]schemaStep, error) {
	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		v, err := stepVersion(path.Base(name))
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(schemaFS, name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, schemaStep{version: v, name: path.Base(name), stmts: string(body)})
	}
	slices.SortFunc(steps, func(a, b schemaStep) int { return a.version - b.version })
	for i := 1; i < len(steps); i++ {
		if steps[i].version == steps[i-1].version {
			return nil, fmt.Errorf("schema steps %s and %s share version %d", steps[i-1].name, steps[i].name, steps[i].version)
		}
	}
	return steps, nil
}

func stepVersion(file string) (int, error) {
	digits, _, _ := strings.Cut(file, "_")
	v, err := strconv.Atoi(digits)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("schema step %s: name must start with a positive number", file)
	}
	return v, nil
}

// migrate brings db up to the newest embedded schema step and reports the
// user_version before and after.
func migrate(db *sql.DB) (from, to int, err error) {
	if err := db.QueryRow("PRAGMA user_version").Scan(&from); err != nil {
		return 0, 0, fmt.Errorf("read user_version: %w", err)
	}
	steps, err := schemaSteps()
	if err != nil {
		return from, from, err
	}
	to = from
	for _, step := range steps {
		if step.version <= to {
			continue
		}
		if err := applyStep(db, step); err != nil {
			return from, to, err
		}
		to = step.version
	}
	return from, to, nil
}

// applyStep runs one step and bumps user_version in the same transaction.
func applyStep(db *sql.DB, step schemaStep) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(step.stmts); err != nil {
		return fmt.Errorf("schema step %s: %w", step.name, err)
	}
	// PRAGMA arguments cannot be bound parameters.
	if _, err := tx.Exec("PRAGMA user_version = " + strconv.Itoa(step.version)); err != nil {
		return fmt.Errorf("schema step %s: set user_version: %w", step.name, err)
	}
	return tx.Commit()
}
