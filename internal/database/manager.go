package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	dbconfig "rollcall/pkg/database"
	"rollcall/pkg/types"
)

// Manager implements interfaces.DatabaseManager on SQLite. Reads go straight
// to the pool; writes are serialised through a single goroutine.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       zerolog.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database and starts the write loop. Migrations are
// applied separately.
func NewManager(config *dbconfig.Config, logger zerolog.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		logger:       logger.With().Str("component", "database").Logger(),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil && retryable(err) && m.config.WriteRetryDelay > 0 {
				m.logger.Warn().Err(err).Dur("delay", m.config.WriteRetryDelay).Msg("database write failed, retrying")
				time.Sleep(m.config.WriteRetryDelay)
				err = op.operation(m.db)
				if err != nil {
					m.logger.Error().Err(err).Msg("database write failed after retry")
				}
			}
			op.result <- err

		case <-m.shutdown:
			m.logger.Info().Msg("database write loop shutting down")
			return
		}
	}
}

// retryable reports whether a write failed for a reason a second attempt
// could fix. Constraint violations are final.
func retryable(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-time.After(m.config.WriteTimeout):
		return ErrWriteTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		return ErrManagerClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.shutdown:
		// The loop may have finished this op just before shutting down.
		select {
		case err := <-result:
			return err
		default:
			return ErrManagerClosed
		}
	}
}

// CreateUser inserts a user. A duplicate email is ErrEmailTaken.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt)
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at FROM users WHERE id = ?
	`, userID))
}

func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return m.scanUser(m.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at FROM users WHERE email = ?
	`, strings.ToLower(email)))
}

// ListStudents returns every student account ordered by name.
func (m *Manager) ListStudents(ctx context.Context) ([]*types.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE role = 'student'
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		user, err := m.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (m *Manager) scanUser(row rowScanner) (*types.User, error) {
	var (
		user types.User
		role string
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Role = types.Role(role)
	return &user, nil
}

// CreateClass inserts a class owned by class.TeacherID.
func (m *Manager) CreateClass(ctx context.Context, class *types.Class) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO classes (id, name, teacher_id, created_at) VALUES (?, ?, ?, ?)
		`, class.ID, class.Name, class.TeacherID, class.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert class: %w", err)
		}
		return nil
	})
}

// GetClass returns the class with its enrolled student ids.
func (m *Manager) GetClass(ctx context.Context, classID string) (*types.Class, error) {
	var class types.Class
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, teacher_id, created_at FROM classes WHERE id = ?
	`, classID).Scan(&class.ID, &class.Name, &class.TeacherID, &class.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query class: %w", err)
	}

	class.StudentIDs, err = m.ListEnrolled(ctx, classID)
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// AddStudent enrolls a student. The user must exist and be a student.
func (m *Manager) AddStudent(ctx context.Context, classID, studentID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var role string
		err = tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, studentID).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query student: %w", err)
		}
		if types.Role(role) != types.RoleStudent {
			return ErrNotAStudent
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO class_students (class_id, student_id) VALUES (?, ?)
		`, classID, studentID)
		if isUniqueViolation(err) {
			return ErrAlreadyEnrolled
		}
		if isForeignKeyViolation(err) {
			return ErrClassNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to enroll student: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit enrollment: %w", err)
		}
		return nil
	})
}

// ListEnrolled returns the enrolled student ids in a stable order.
func (m *Manager) ListEnrolled(ctx context.Context, classID string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT student_id FROM class_students WHERE class_id = ? ORDER BY student_id ASC
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollment: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollment rows: %w", err)
	}
	return ids, nil
}

func (m *Manager) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM class_students WHERE class_id = ? AND student_id = ?
	`, classID, studentID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query enrollment: %w", err)
	}
	return count > 0, nil
}

// WriteRecord upserts on (session_id, student_id), so replaying a close
// leaves exactly one row per student.
func (m *Manager) WriteRecord(ctx context.Context, record *types.AttendanceRecord) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO attendance_records (id, session_id, class_id, student_id, status, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id, student_id) DO UPDATE SET
				status = excluded.status,
				recorded_at = excluded.recorded_at
		`, record.ID, record.SessionID, record.ClassID, record.StudentID, string(record.Status), record.RecordedAt)
		if err != nil {
			return fmt.Errorf("failed to write attendance record for %s: %w", record.StudentID, err)
		}
		return nil
	})
}

func (m *Manager) CountByStatus(ctx context.Context, classID, sessionID string, status types.Status) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE class_id = ? AND session_id = ? AND status = ?
	`, classID, sessionID, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return count, nil
}

func (m *Manager) ListStudentRecords(ctx context.Context, classID, studentID string) ([]*types.AttendanceRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, session_id, class_id, student_id, status, recorded_at
		FROM attendance_records
		WHERE class_id = ? AND student_id = ?
		ORDER BY recorded_at DESC
	`, classID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*types.AttendanceRecord{}
	for rows.Next() {
		var (
			record types.AttendanceRecord
			status string
		)
		if err := rows.Scan(&record.ID, &record.SessionID, &record.ClassID, &record.StudentID, &status, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		record.Status = types.Status(status)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return records, nil
}

// HealthCheck pings the database and runs a trivial read.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB exposes the pool for migrations.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
