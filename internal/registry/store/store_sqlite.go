package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/platform/database"
	"rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// SQLiteStore persists professionals in a single-file database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SQLite reports the violated columns rather than constraint names.
var sqliteColumnErrors = map[string]error{
	"professionals.credential_id":     ErrCredentialTaken,
	"professionals.email":             ErrEmailTaken,
	"professionals.registration_code": ErrCodeTaken,
	"professionals.id":                ErrIDTaken,
}

func (s *SQLiteStore) CreateIfAvailable(ctx context.Context, p *models.Professional) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO professionals
			(id, credential_id, name, email, profession, company, registration_code, public_key_credential, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID.String(), p.CredentialID.String(), p.Name, p.Email, p.Profession, p.Company,
		p.RegistrationCode, nullableJSON(p.PublicKeyCredential), toMillis(p.CreatedAt))
	if err != nil {
		cols, ok := database.UniqueViolation(err)
		if !ok {
			return fmt.Errorf("insert professional: %w", err)
		}
		mapped, known := sqliteColumnErrors[cols]
		if !known {
			return fmt.Errorf("insert professional: %w", sentinel.ErrAlreadyUsed)
		}
		if mapped != ErrCredentialTaken && s.credentialExists(ctx, p.CredentialID) {
			return ErrCredentialTaken
		}
		return mapped
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read professional seq: %w", err)
	}
	p.Seq = seq
	return nil
}

func (s *SQLiteStore) credentialExists(ctx context.Context, credentialID domain.CredentialID) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM professionals WHERE credential_id = ?`, credentialID.String(),
	).Scan(&one)
	return err == nil
}

const selectProfessionalSQLite = `
	SELECT seq, id, credential_id, name, email, profession, company, registration_code,
	       public_key_credential, created_at
	FROM professionals`

func (s *SQLiteStore) FindByCredentialID(ctx context.Context, credentialID domain.CredentialID) (*models.Professional, error) {
	row := s.db.QueryRowContext(ctx, selectProfessionalSQLite+` WHERE credential_id = ?`, credentialID.String())
	p, err := scanSQLiteProfessional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find professional by credential: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) FindByRegistrationCode(ctx context.Context, code string) (*models.Professional, error) {
	row := s.db.QueryRowContext(ctx, selectProfessionalSQLite+` WHERE registration_code = ?`, code)
	p, err := scanSQLiteProfessional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find professional by registration code: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateCredential(ctx context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE professionals SET public_key_credential = ? WHERE credential_id = ?`,
		nullableJSON(publicKeyCredential), credentialID.String())
	if err != nil {
		return fmt.Errorf("update professional credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update professional credential: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, afterSeq int64, limit int) ([]*models.Professional, error) {
	rows, err := s.db.QueryContext(ctx, selectProfessionalSQLite+`
		WHERE seq > ?
		ORDER BY seq
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	var out []*models.Professional
	for rows.Next() {
		p, err := scanSQLiteProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("scan professional: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSQLiteProfessional(row scanner) (*models.Professional, error) {
	var (
		p            models.Professional
		id           string
		credentialID string
		publicKey    sql.NullString
		createdAt    int64
	)
	if err := row.Scan(&p.Seq, &id, &credentialID, &p.Name, &p.Email, &p.Profession, &p.Company,
		&p.RegistrationCode, &publicKey, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseProfessionalID(id)
	if err != nil {
		return nil, err
	}
	p.ID = parsed
	p.CredentialID = domain.CredentialID(credentialID)
	if publicKey.Valid && publicKey.String != "" {
		p.PublicKeyCredential = []byte(publicKey.String)
	}
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
