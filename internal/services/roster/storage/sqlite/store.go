// Package sqlite provides a SQLite-backed roster storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	sqlitemigrate "github.com/louisbranch/students/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/students/internal/services/roster/domain"
	"github.com/louisbranch/students/internal/services/roster/storage"
	"github.com/louisbranch/students/internal/services/roster/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists groups and students in one SQLite file.
type Store struct {
	sqlDB   *sql.DB
	applied []string
}

// Open opens the SQLite roster file at path and ensures the schema exists.
// Opening an existing file never drops or rewrites its tables; migrations
// already recorded are skipped.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	applied, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, applied: applied}, nil
}

// AppliedMigrations lists the migrations this Open applied, empty when the
// schema was already current.
func (s *Store) AppliedMigrations() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.applied...)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AddStudent stores one student, creating its group when the label is new.
// The group lookup, the optional group insert and the student insert commit
// together or not at all.
func (s *Store) AddStudent(ctx context.Context, record domain.Record) (storage.Student, error) {
	if err := ctx.Err(); err != nil {
		return storage.Student{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Student{}, fmt.Errorf("storage is not configured")
	}
	record, err := domain.NormalizeRecord(record)
	if err != nil {
		return storage.Student{}, err
	}
	marks, err := record.Marks.Encode()
	if err != nil {
		return storage.Student{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Student{}, fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	group, err := resolveGroup(ctx, tx, record.Group)
	if err != nil {
		return storage.Student{}, err
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO students (student_name, group_id, student_marks) VALUES (?, ?, ?)`,
		record.Name,
		group.ID,
		marks,
	)
	if err != nil {
		return storage.Student{}, fmt.Errorf("insert student: %w", err)
	}
	studentID, err := result.LastInsertId()
	if err != nil {
		return storage.Student{}, fmt.Errorf("read student id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Student{}, fmt.Errorf("commit student: %w", err)
	}
	return storage.Student{
		ID:    studentID,
		Name:  record.Name,
		Group: group,
		Marks: record.Marks,
	}, nil
}

// resolveGroup returns the group labeled label, inserting it when absent.
func resolveGroup(ctx context.Context, tx *sql.Tx, label string) (storage.Group, error) {
	group := storage.Group{Label: label}
	err := tx.QueryRowContext(ctx, `SELECT group_id FROM "groups" WHERE group_num = ?`, label).Scan(&group.ID)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storage.Group{}, fmt.Errorf("get group: %w", err)
	}

	result, err := tx.ExecContext(ctx, `INSERT INTO "groups" (group_num) VALUES (?)`, label)
	if err != nil {
		if isGroupUniqueViolation(err) {
			return storage.Group{}, fmt.Errorf("insert group %q: %w", label, storage.ErrAlreadyExists)
		}
		return storage.Group{}, fmt.Errorf("insert group: %w", err)
	}
	group.ID, err = result.LastInsertId()
	if err != nil {
		return storage.Group{}, fmt.Errorf("read group id: %w", err)
	}
	return group, nil
}

// ListStudents returns every student joined with its group label, in
// insertion order.
func (s *Store) ListStudents(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT s.student_name, g.group_num, s.student_marks
		   FROM students s
		  INNER JOIN "groups" g ON g.group_id = s.group_id
		  ORDER BY s.student_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return records, nil
}

// FindStudents returns the students whose own mark average is at least
// minAverage, in insertion order. Students without marks never match.
func (s *Store) FindStudents(ctx context.Context, minAverage float64) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if math.IsNaN(minAverage) || math.IsInf(minAverage, 0) {
		return nil, fmt.Errorf("minimum average must be a finite number")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT s.student_name, g.group_num, s.student_marks
		   FROM students s
		  INNER JOIN "groups" g ON g.group_id = s.group_id
		  INNER JOIN (
		        SELECT st.student_id AS student_id,
		               AVG(CAST(m.value AS REAL)) AS average
		          FROM students st,
		               json_each(CASE WHEN json_valid(st.student_marks) THEN st.student_marks ELSE '[]' END) m
		         GROUP BY st.student_id
		       ) a ON a.student_id = s.student_id
		  WHERE a.average >= ?
		  ORDER BY s.student_id ASC`,
		minAverage,
	)
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return records, nil
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	defer rows.Close()

	records := make([]domain.Record, 0)
	for rows.Next() {
		var (
			record domain.Record
			marks  string
		)
		if err := rows.Scan(&record.Name, &record.Group, &marks); err != nil {
			return nil, err
		}
		decoded, err := domain.DecodeMarks(marks)
		if err != nil {
			return nil, fmt.Errorf("decode marks for %q: %w", record.Name, err)
		}
		record.Marks = decoded
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func isGroupUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "groups.group_num")
}

var _ storage.RosterStore = (*Store)(nil)
