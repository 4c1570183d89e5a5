package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/attendancelist/models"
	"rollcall/internal/platform/database"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Create(ctx context.Context, l *models.List) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_lists
			(id, installation_name, meeting_date, meeting_time, course_title, course_content,
			 instructor_name, instructor_role, instructor_qualification, location,
			 status, start_time, end_time, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID.String(), l.InstallationName, l.MeetingDate, l.MeetingTime, l.CourseTitle, l.CourseContent,
		l.InstructorName, l.InstructorRole, l.InstructorQualification, l.Location,
		string(l.Status), l.StartTime.UnixMilli(), nullMillis(l.EndTime), nullString(l.Duration), l.CreatedAt.UnixMilli())
	if err != nil {
		if cols, ok := database.UniqueViolation(err); ok {
			if cols == "attendance_lists.status" {
				return ErrActiveListExists
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert attendance list: %w", err)
	}
	return nil
}

const selectListSQLite = `
	SELECT id, installation_name, meeting_date, meeting_time, course_title, course_content,
	       instructor_name, instructor_role, instructor_qualification, location,
	       status, start_time, end_time, duration, created_at
	FROM attendance_lists`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) FindByID(ctx context.Context, id domain.ListID) (*models.List, error) {
	return findOneSQLite(ctx, s.db, selectListSQLite+` WHERE id = ?`, id.String())
}

func (s *SQLiteStore) FindActive(ctx context.Context) (*models.List, error) {
	return findOneSQLite(ctx, s.db, selectListSQLite+` WHERE status = 'active'`)
}

func findOneSQLite(ctx context.Context, q rowQuerier, query string, args ...any) (*models.List, error) {
	l, err := scanSQLiteList(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance list: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*models.List, error) {
	rows, err := s.db.QueryContext(ctx, selectListSQLite+` ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attendance lists: %w", err)
	}
	defer rows.Close()
	var out []*models.List
	for rows.Next() {
		l, err := scanSQLiteList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Execute validates and mutates inside an immediate transaction, which holds
// the database write lock from the first statement.
func (s *SQLiteStore) Execute(ctx context.Context, id domain.ListID, validate func(*models.List) error, mutate func(*models.List)) (*models.List, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	l, err := findOneSQLite(ctx, tx, selectListSQLite+` WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	if err := validate(l); err != nil {
		return nil, err
	}
	mutate(l)
	if _, err := tx.ExecContext(ctx, `
		UPDATE attendance_lists SET status = ?, end_time = ?, duration = ? WHERE id = ?
	`, string(l.Status), nullMillis(l.EndTime), nullString(l.Duration), id.String()); err != nil {
		return nil, fmt.Errorf("update attendance list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return l, nil
}

func scanSQLiteList(row scanner) (*models.List, error) {
	var (
		l         models.List
		id        string
		status    string
		startTime int64
		endTime   sql.NullInt64
		duration  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&id, &l.InstallationName, &l.MeetingDate, &l.MeetingTime, &l.CourseTitle, &l.CourseContent,
		&l.InstructorName, &l.InstructorRole, &l.InstructorQualification, &l.Location,
		&status, &startTime, &endTime, &duration, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseListID(id)
	if err != nil {
		return nil, err
	}
	l.ID = parsed
	l.Status = models.Status(status)
	l.StartTime = time.UnixMilli(startTime).UTC()
	l.CreatedAt = time.UnixMilli(createdAt).UTC()
	if endTime.Valid {
		t := time.UnixMilli(endTime.Int64).UTC()
		l.EndTime = &t
	}
	l.Duration = duration.String
	return &l, nil
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
