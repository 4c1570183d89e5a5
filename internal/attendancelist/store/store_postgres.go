package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollcall/internal/attendancelist/models"
	"rollcall/internal/platform/database"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, l *models.List) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO attendance_lists
			(id, installation_name, meeting_date, meeting_time, course_title, course_content,
			 instructor_name, instructor_role, instructor_qualification, location,
			 status, start_time, end_time, duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, l.ID.String(), l.InstallationName, l.MeetingDate, l.MeetingTime, l.CourseTitle, l.CourseContent,
		l.InstructorName, l.InstructorRole, l.InstructorQualification, l.Location,
		string(l.Status), l.StartTime, l.EndTime, nullString(l.Duration), l.CreatedAt)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if constraint == "attendance_lists_single_active" {
				return ErrActiveListExists
			}
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert attendance list: %w", err)
	}
	return nil
}

const selectList = `
	SELECT id, installation_name, meeting_date, meeting_time, course_title, course_content,
	       instructor_name, instructor_role, instructor_qualification, location,
	       status, start_time, end_time, duration, created_at
	FROM attendance_lists`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ListID) (*models.List, error) {
	return s.findOne(ctx, s.q(ctx), selectList+` WHERE id = $1`, id.String())
}

func (s *PostgresStore) FindActive(ctx context.Context) (*models.List, error) {
	return s.findOne(ctx, s.q(ctx), selectList+` WHERE status = 'active'`)
}

func (s *PostgresStore) findOne(ctx context.Context, q querier, query string, args ...any) (*models.List, error) {
	l, err := scanPostgresList(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance list: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.List, error) {
	rows, err := s.q(ctx).QueryContext(ctx, selectList+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attendance lists: %w", err)
	}
	defer rows.Close()
	var out []*models.List
	for rows.Next() {
		l, err := scanPostgresList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance list: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Execute locks the row with FOR UPDATE, validates, mutates and writes back
// within one transaction.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ListID, validate func(*models.List) error, mutate func(*models.List)) (*models.List, error) {
	var result *models.List
	err := txcontext.NewSQLRunner(s.db).RunInTx(ctx, func(txCtx context.Context) error {
		q := s.q(txCtx)
		l, err := s.findOne(txCtx, q, selectList+` WHERE id = $1 FOR UPDATE`, id.String())
		if err != nil {
			return err
		}
		if err := validate(l); err != nil {
			return err
		}
		mutate(l)
		if _, err := q.ExecContext(txCtx, `
			UPDATE attendance_lists
			SET status = $2, end_time = $3, duration = $4
			WHERE id = $1
		`, id.String(), string(l.Status), l.EndTime, nullString(l.Duration)); err != nil {
			return fmt.Errorf("update attendance list: %w", err)
		}
		result = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgresList(row scanner) (*models.List, error) {
	var (
		l        models.List
		id       string
		status   string
		endTime  sql.NullTime
		duration sql.NullString
	)
	if err := row.Scan(&id, &l.InstallationName, &l.MeetingDate, &l.MeetingTime, &l.CourseTitle, &l.CourseContent,
		&l.InstructorName, &l.InstructorRole, &l.InstructorQualification, &l.Location,
		&status, &l.StartTime, &endTime, &duration, &l.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseListID(id)
	if err != nil {
		return nil, err
	}
	l.ID = parsed
	l.Status = models.Status(status)
	if endTime.Valid {
		t := endTime.Time
		l.EndTime = &t
	}
	l.Duration = duration.String
	return &l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
