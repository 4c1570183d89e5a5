package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollcall/internal/platform/database"
	"rollcall/internal/registry/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
	txcontext "rollcall/pkg/platform/tx"
)

// PostgresStore persists professionals in Postgres. Uniqueness comes from the
// table constraints; there is no check-then-insert.
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

var pgConstraintErrors = map[string]error{
	"professionals_credential_id_key":     ErrCredentialTaken,
	"professionals_email_key":             ErrEmailTaken,
	"professionals_registration_code_key": ErrCodeTaken,
	"professionals_id_key":                ErrIDTaken,
}

func (s *PostgresStore) CreateIfAvailable(ctx context.Context, p *models.Professional) error {
	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO professionals
			(id, credential_id, name, email, profession, company, registration_code, public_key_credential, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, p.ID.String(), p.CredentialID.String(), p.Name, p.Email, p.Profession, p.Company,
		p.RegistrationCode, nullableJSON(p.PublicKeyCredential), p.CreatedAt,
	).Scan(&p.Seq)
	if err == nil {
		return nil
	}

	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return fmt.Errorf("insert professional: %w", err)
	}
	mapped, known := pgConstraintErrors[constraint]
	if !known {
		return fmt.Errorf("insert professional: %w", sentinel.ErrAlreadyUsed)
	}
	if mapped != ErrCredentialTaken && s.credentialExists(ctx, p.CredentialID) {
		return ErrCredentialTaken
	}
	return mapped
}

// credentialExists runs outside any caller transaction, which Postgres has
// already aborted after the failed insert.
func (s *PostgresStore) credentialExists(ctx context.Context, credentialID domain.CredentialID) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM professionals WHERE credential_id = $1`, credentialID.String(),
	).Scan(&one)
	return err == nil
}

const selectProfessional = `
	SELECT seq, id, credential_id, name, email, profession, company, registration_code,
	       public_key_credential, created_at
	FROM professionals`

func (s *PostgresStore) FindByCredentialID(ctx context.Context, credentialID domain.CredentialID) (*models.Professional, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectProfessional+` WHERE credential_id = $1`, credentialID.String())
	p, err := scanProfessional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find professional by credential: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByRegistrationCode(ctx context.Context, code string) (*models.Professional, error) {
	row := s.q(ctx).QueryRowContext(ctx, selectProfessional+` WHERE registration_code = $1`, code)
	p, err := scanProfessional(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find professional by registration code: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdateCredential(ctx context.Context, credentialID domain.CredentialID, publicKeyCredential []byte) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE professionals SET public_key_credential = $2 WHERE credential_id = $1`,
		credentialID.String(), nullableJSON(publicKeyCredential))
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

func (s *PostgresStore) List(ctx context.Context, afterSeq int64, limit int) ([]*models.Professional, error) {
	rows, err := s.q(ctx).QueryContext(ctx, selectProfessional+`
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	var out []*models.Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("scan professional: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfessional(row scanner) (*models.Professional, error) {
	var (
		p            models.Professional
		id           string
		credentialID string
		publicKey    []byte
	)
	if err := row.Scan(&p.Seq, &id, &credentialID, &p.Name, &p.Email, &p.Profession, &p.Company,
		&p.RegistrationCode, &publicKey, &p.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseProfessionalID(id)
	if err != nil {
		return nil, err
	}
	p.ID = parsed
	p.CredentialID = domain.CredentialID(credentialID)
	if len(publicKey) > 0 {
		p.PublicKeyCredential = publicKey
	}
	return &p, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
