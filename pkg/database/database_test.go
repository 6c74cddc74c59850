package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.DatabasePath != "./data/rollcall.db" {
		t.Errorf("Expected DatabasePath './data/rollcall.db', got %s", config.DatabasePath)
	}
	if config.MaxConnections != 10 {
		t.Errorf("Expected MaxConnections 10, got %d", config.MaxConnections)
	}
	if config.WriteRetryDelay != 5*time.Second {
		t.Errorf("Expected WriteRetryDelay 5s, got %v", config.WriteRetryDelay)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate: %v", err)
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty path", func(c *Config) { c.DatabasePath = "" }, true},
		{"zero connections", func(c *Config) { c.MaxConnections = 0 }, true},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }, true},
		{"zero idle", func(c *Config) { c.ConnMaxIdleTime = 0 }, true},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, true},
		{"negative retry delay", func(c *Config) { c.WriteRetryDelay = -time.Second }, true},
		{"retry disabled", func(c *Config) { c.WriteRetryDelay = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMigrationManager_ApplyMigrations(t *testing.T) {
	db := openTestDB(t)

	files := fstest.MapFS{
		"002_add_index.sql": {Data: []byte(`CREATE INDEX idx_test_name ON test_table(name);`)},
		"001_test.sql":      {Data: []byte(`CREATE TABLE test_table (id TEXT PRIMARY KEY, name TEXT);`)},
		"README.md":         {Data: []byte(`not a migration`)},
	}

	mgr := NewMigrationManager(db, files)
	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations should not fail: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 applied migrations, got %d", count)
	}

	// Second run is a no-op.
	if err := mgr.ApplyMigrations(); err != nil {
		t.Errorf("Re-applying migrations should not fail: %v", err)
	}
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)

	files := fstest.MapFS{
		"001_broken.sql": {Data: []byte(`CREATE TABLE ok_table (id TEXT); CREATE TABLE broken (`)},
	}

	if err := NewMigrationManager(db, files).ApplyMigrations(); err == nil {
		t.Fatal("Expected broken migration to fail")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("Broken migration should not be recorded, got %d rows", count)
	}
}

func TestMigrationManager_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	mgr := NewMigrationManager(db, EmbeddedMigrations())

	if err := mgr.ValidateSchema(); err == nil {
		t.Error("ValidateSchema should fail on empty database")
	}

	if err := mgr.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	if err := mgr.ValidateSchema(); err != nil {
		t.Errorf("ValidateSchema failed after migration: %v", err)
	}
}

func TestSchema_AttendanceUpsertKey(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db, EmbeddedMigrations()).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}

	setup := []string{
		`INSERT INTO users (id, name, email, password_hash, role) VALUES ('t1', 'Teach', 't@example.com', 'x', 'teacher')`,
		`INSERT INTO users (id, name, email, password_hash, role) VALUES ('s1', 'Stud', 's@example.com', 'x', 'student')`,
		`INSERT INTO classes (id, name, teacher_id) VALUES ('c1', 'Math', 't1')`,
		`INSERT INTO attendance_records (id, session_id, class_id, student_id, status, recorded_at)
		 VALUES ('r1', 'sess1', 'c1', 's1', 'present', CURRENT_TIMESTAMP)`,
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}

	_, err := db.Exec(`INSERT INTO attendance_records (id, session_id, class_id, student_id, status, recorded_at)
		VALUES ('r2', 'sess1', 'c1', 's1', 'absent', CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Error("Expected unique (session_id, student_id) violation")
	}

	_, err = db.Exec(`INSERT INTO attendance_records (id, session_id, class_id, student_id, status, recorded_at)
		VALUES ('r3', 'sess2', 'c1', 's1', 'late', CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Error("Expected status check constraint violation")
	}
}
