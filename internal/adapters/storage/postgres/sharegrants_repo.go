package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"prescription-share/internal/domain/sharegrants"

	"github.com/jackc/pgx/v5/pgconn"
)

// Esquema esperado (share_grants):
//   id TEXT PRIMARY KEY,
//   prescription_id TEXT NOT NULL,
//   owner_user_id TEXT NOT NULL,
//   token TEXT NOT NULL UNIQUE,
//   share_url TEXT NOT NULL,
//   qr_payload TEXT NOT NULL,
//   status TEXT NOT NULL,
//   linked_account_id TEXT NULL,
//   expires_at / created_at / viewed_at / linked_at TIMESTAMPTZ
// Índices secundarios por prescription_id y linked_account_id.

type ShareGrantsRepo struct {
	db *sql.DB
}

func NewShareGrantsRepo(db *sql.DB) *ShareGrantsRepo {
	return &ShareGrantsRepo{db: db}
}

const grantColumns = `
	id, prescription_id, owner_user_id,
	token, share_url, qr_payload,
	status, linked_account_id,
	expires_at, created_at, viewed_at, linked_at
`

func (r *ShareGrantsRepo) Create(ctx context.Context, g sharegrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_grants (
			id, prescription_id, owner_user_id,
			token, share_url, qr_payload,
			status, linked_account_id,
			expires_at, created_at, viewed_at, linked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		g.ID,
		g.PrescriptionID,
		g.OwnerUserID,
		g.Token,
		g.ShareURL,
		g.QRPayload,
		string(g.Status),
		toNullString(g.LinkedAccountID),
		g.ExpiresAt,
		g.CreatedAt,
		toNullTime(g.ViewedAt),
		toNullTime(g.LinkedAt),
	)
	if err != nil {
		// 23505 = unique_violation sobre el token
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sharegrants.ErrTokenInUse
		}
		return err
	}
	return nil
}

func (r *ShareGrantsRepo) GetByToken(ctx context.Context, token string) (sharegrants.Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return sharegrants.Grant{}, sharegrants.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM share_grants
		WHERE token = $1
	`, token)

	return scanGrant(row)
}

func (r *ShareGrantsRepo) GetByPrescription(ctx context.Context, prescriptionID string) (sharegrants.Grant, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	if prescriptionID == "" {
		return sharegrants.Grant{}, sharegrants.ErrNotFound
	}

	// el más reciente: re-shares dejan grants anteriores expirados
	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM share_grants
		WHERE prescription_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, prescriptionID)

	return scanGrant(row)
}

func (r *ShareGrantsRepo) ListByLinkedAccount(ctx context.Context, accountID string) ([]sharegrants.Grant, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM share_grants
		WHERE linked_account_id = $1
		ORDER BY linked_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharegrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkViewed transiciona issued -> viewed con un update condicional:
// si otra lectura ganó la carrera, re-leemos y devolvemos changed=false.
func (r *ShareGrantsRepo) MarkViewed(ctx context.Context, id string, at time.Time) (sharegrants.Grant, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE share_grants
		SET status = $2, viewed_at = $3
		WHERE id = $1 AND status = $4
	`,
		id,
		string(sharegrants.StatusViewed),
		at,
		string(sharegrants.StatusIssued),
	)
	if err != nil {
		return sharegrants.Grant{}, false, err
	}

	n, _ := res.RowsAffected()
	g, err := r.getByID(ctx, id)
	if err != nil {
		return sharegrants.Grant{}, false, err
	}
	return g, n == 1, nil
}

// LinkAccount es el compare-and-set sobre linked_account_id: un solo UPDATE
// condicional decide el ganador; el perdedor observa la fila ya comprometida.
func (r *ShareGrantsRepo) LinkAccount(ctx context.Context, id, accountID string, at time.Time) (sharegrants.Grant, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE share_grants
		SET status = $2, linked_account_id = $3, linked_at = $4
		WHERE id = $1 AND linked_account_id IS NULL
	`,
		id,
		string(sharegrants.StatusLinked),
		accountID,
		at,
	)
	if err != nil {
		return sharegrants.Grant{}, false, err
	}

	n, _ := res.RowsAffected()
	g, err := r.getByID(ctx, id)
	if err != nil {
		return sharegrants.Grant{}, false, err
	}
	return g, n == 1, nil
}

func (r *ShareGrantsRepo) getByID(ctx context.Context, id string) (sharegrants.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM share_grants
		WHERE id = $1
	`, id)
	return scanGrant(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (sharegrants.Grant, error) {
	var g sharegrants.Grant
	var status string
	var linkedAccount sql.NullString
	var viewedAt, linkedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.PrescriptionID,
		&g.OwnerUserID,
		&g.Token,
		&g.ShareURL,
		&g.QRPayload,
		&status,
		&linkedAccount,
		&g.ExpiresAt,
		&g.CreatedAt,
		&viewedAt,
		&linkedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sharegrants.Grant{}, sharegrants.ErrNotFound
		}
		return sharegrants.Grant{}, err
	}

	g.Status = sharegrants.Status(status)
	if linkedAccount.Valid {
		g.LinkedAccountID = linkedAccount.String
	}
	g.ViewedAt = fromNullTime(viewedAt)
	g.LinkedAt = fromNullTime(linkedAt)
	return g, nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
