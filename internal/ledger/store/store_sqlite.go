package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
)

// SQLiteStore relies on the immediate transaction taking the database write
// lock before the row number is read.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const selectRecordSQLite = `
	SELECT id, list_id, professional_id, credential_id, row_number, entry_time, location
	FROM attendance_records`

func (s *SQLiteStore) AppendOnce(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM attendance_lists WHERE id = ?`, rec.ListID.String()).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("read attendance list status: %w", err)
	}
	if status != listActive {
		return nil, false, ErrListClosed
	}

	existing, err := scanSQLiteRecord(tx.QueryRowContext(ctx, selectRecordSQLite+`
		WHERE list_id = ? AND credential_id = ?
	`, rec.ListID.String(), rec.CredentialID.String()))
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("find attendance record: %w", err)
	}

	stored := *rec
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row_number), 0) + 1 FROM attendance_records WHERE list_id = ?`,
		rec.ListID.String(),
	).Scan(&stored.RowNumber); err != nil {
		return nil, false, fmt.Errorf("next row number: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records
			(id, list_id, professional_id, credential_id, row_number, entry_time, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, stored.ID.String(), stored.ListID.String(), stored.ProfessionalID.String(),
		stored.CredentialID.String(), stored.RowNumber, stored.EntryTime.UnixMilli(), stored.Location); err != nil {
		return nil, false, fmt.Errorf("insert attendance record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return &stored, true, nil
}

func (s *SQLiteStore) ListByList(ctx context.Context, listID domain.ListID) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecordSQLite+`
		WHERE list_id = ?
		ORDER BY row_number
	`, listID.String())
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()
	var out []*models.Record
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSQLiteRecord(row scanner) (*models.Record, error) {
	var (
		r                          models.Record
		id, listID, professionalID string
		credentialID               string
		entryTime                  int64
	)
	if err := row.Scan(&id, &listID, &professionalID, &credentialID, &r.RowNumber, &entryTime, &r.Location); err != nil {
		return nil, err
	}
	r.EntryTime = time.UnixMilli(entryTime).UTC()
	return assembleRecord(&r, id, listID, professionalID, credentialID)
}
