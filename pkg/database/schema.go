package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator checks a migrated database for the tables, columns,
// indexes and constraints the repositories rely on.
type SchemaValidator struct {
	db *sql.DB
}

func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

var requiredTables = map[string]string{
	"users":              "accounts",
	"classes":            "class ownership",
	"class_students":     "enrollment",
	"attendance_records": "closed session results",
	"schema_migrations":  "migration tracking",
}

var requiredIndexes = map[string]string{
	"idx_classes_teacher":           "classes by teacher",
	"idx_class_students_student":    "classes by student",
	"idx_attendance_session_status": "close counts",
	"idx_attendance_student":        "student history",
}

func (v *SchemaValidator) ValidateTablesExist() error {
	for table, description := range requiredTables {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}
	return nil
}

func (v *SchemaValidator) ValidateTableStructure() error {
	expected := map[string]map[string]string{
		"users": {
			"id":            "TEXT",
			"name":          "TEXT",
			"email":         "TEXT",
			"password_hash": "TEXT",
			"role":          "TEXT",
			"created_at":    "DATETIME",
		},
		"classes": {
			"id":         "TEXT",
			"name":       "TEXT",
			"teacher_id": "TEXT",
			"created_at": "DATETIME",
		},
		"class_students": {
			"class_id":    "TEXT",
			"student_id":  "TEXT",
			"enrolled_at": "DATETIME",
		},
		"attendance_records": {
			"id":          "TEXT",
			"session_id":  "TEXT",
			"class_id":    "TEXT",
			"student_id":  "TEXT",
			"status":      "TEXT",
			"recorded_at": "DATETIME",
		},
	}

	for table, columns := range expected {
		if err := v.validateColumns(table, columns); err != nil {
			return fmt.Errorf("%s table structure invalid: %w", table, err)
		}
	}
	return nil
}

func (v *SchemaValidator) ValidateIndexes() error {
	for index, purpose := range requiredIndexes {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}
	return nil
}

// ValidateConstraints probes foreign key and check constraints inside a
// transaction that is always rolled back. The connection must have foreign
// keys enabled.
func (v *SchemaValidator) ValidateConstraints() error {
	tx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO class_students (class_id, student_id) VALUES ('missing-class', 'missing-student')`); err == nil {
		return fmt.Errorf("foreign key constraint not enforced: class_students.class_id")
	}

	if _, err := tx.Exec(`
		INSERT INTO users (id, name, email, password_hash, role)
		VALUES ('probe', 'Probe', 'probe@example.com', 'x', 'principal')
	`); err == nil {
		return fmt.Errorf("check constraint not enforced: users.role")
	}

	return nil
}

func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue interface{}
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, wantType := range expectedColumns {
		gotType, ok := found[column]
		if !ok {
			return fmt.Errorf("column %s not found", column)
		}
		if gotType != wantType {
			return fmt.Errorf("column %s has type %s, expected %s", column, gotType, wantType)
		}
	}
	return nil
}
