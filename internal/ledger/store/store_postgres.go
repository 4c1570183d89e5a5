package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	txcontext "rollcall/pkg/platform/tx"
)

// PostgresStore serializes appends per list with a transaction-scoped
// advisory lock keyed on the list id. The UNIQUE constraints back it up.
type PostgresStore struct {
	db     *sql.DB
	runner *txcontext.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: txcontext.NewSQLRunner(db)}
}

func (s *PostgresStore) AppendOnce(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	var (
		result  *models.Record
		created bool
	)
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		tx, _ := txcontext.From(txCtx)

		if _, err := tx.ExecContext(txCtx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, rec.ListID.String()); err != nil {
			return fmt.Errorf("lock attendance list: %w", err)
		}

		// FOR SHARE blocks a concurrent Complete until this append commits.
		var status string
		err := tx.QueryRowContext(txCtx,
			`SELECT status FROM attendance_lists WHERE id = $1 FOR SHARE`, rec.ListID.String()).Scan(&status)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read attendance list status: %w", err)
		}
		if status != listActive {
			return ErrListClosed
		}

		existing, err := scanPostgresRecord(tx.QueryRowContext(txCtx, selectRecord+`
			WHERE list_id = $1 AND credential_id = $2
		`, rec.ListID.String(), rec.CredentialID.String()))
		switch {
		case err == nil:
			result = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find attendance record: %w", err)
		}

		stored := *rec
		if err := tx.QueryRowContext(txCtx, `
			SELECT COALESCE(MAX(row_number), 0) + 1 FROM attendance_records WHERE list_id = $1
		`, rec.ListID.String()).Scan(&stored.RowNumber); err != nil {
			return fmt.Errorf("next row number: %w", err)
		}
		if _, err := tx.ExecContext(txCtx, `
			INSERT INTO attendance_records
				(id, list_id, professional_id, credential_id, row_number, entry_time, location)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, stored.ID.String(), stored.ListID.String(), stored.ProfessionalID.String(),
			stored.CredentialID.String(), stored.RowNumber, stored.EntryTime, stored.Location); err != nil {
			return fmt.Errorf("insert attendance record: %w", err)
		}
		result = &stored
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

const selectRecord = `
	SELECT id, list_id, professional_id, credential_id, row_number, entry_time, location
	FROM attendance_records`

func (s *PostgresStore) ListByList(ctx context.Context, listID domain.ListID) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE list_id = $1
		ORDER BY row_number
	`, listID.String())
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()
	var out []*models.Record
	for rows.Next() {
		r, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPostgresRecord(row scanner) (*models.Record, error) {
	var (
		r                          models.Record
		id, listID, professionalID string
		credentialID               string
	)
	if err := row.Scan(&id, &listID, &professionalID, &credentialID, &r.RowNumber, &r.EntryTime, &r.Location); err != nil {
		return nil, err
	}
	return assembleRecord(&r, id, listID, professionalID, credentialID)
}

func assembleRecord(r *models.Record, id, listID, professionalID, credentialID string) (*models.Record, error) {
	var err error
	if r.ID, err = domain.ParseRecordID(id); err != nil {
		return nil, err
	}
	if r.ListID, err = domain.ParseListID(listID); err != nil {
		return nil, err
	}
	if r.ProfessionalID, err = domain.ParseProfessionalID(professionalID); err != nil {
		return nil, err
	}
	r.CredentialID = domain.CredentialID(credentialID)
	return r, nil
}
