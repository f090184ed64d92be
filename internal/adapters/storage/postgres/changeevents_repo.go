package postgres

import (
	"context"
	"database/sql"
	"strings"

	"prescription-share/internal/domain/sharegrants"
)

// Esquema esperado (change_events):
//   id TEXT PRIMARY KEY,
//   type TEXT NOT NULL,
//   prescription_id / grant_id / owner_user_id TEXT NOT NULL,
//   account_id TEXT NULL,
//   occurred_at TIMESTAMPTZ NOT NULL
// Append-only: sin UPDATE ni DELETE.

type ChangeEventsRepo struct {
	db *sql.DB
}

func NewChangeEventsRepo(db *sql.DB) *ChangeEventsRepo {
	return &ChangeEventsRepo{db: db}
}

func (r *ChangeEventsRepo) Append(ctx context.Context, e sharegrants.ChangeEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO change_events (
			id, type, prescription_id, grant_id, owner_user_id, account_id, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		string(e.Type),
		e.PrescriptionID,
		e.GrantID,
		e.OwnerUserID,
		toNullString(e.AccountID),
		e.OccurredAt,
	)
	return err
}

func (r *ChangeEventsRepo) ListByPrescription(ctx context.Context, prescriptionID string) ([]sharegrants.ChangeEvent, error) {
	prescriptionID = strings.TrimSpace(prescriptionID)
	if prescriptionID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, prescription_id, grant_id, owner_user_id, account_id, occurred_at
		FROM change_events
		WHERE prescription_id = $1
		ORDER BY occurred_at ASC
	`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharegrants.ChangeEvent, 0)
	for rows.Next() {
		var e sharegrants.ChangeEvent
		var typ string
		var account sql.NullString

		if err := rows.Scan(
			&e.ID,
			&typ,
			&e.PrescriptionID,
			&e.GrantID,
			&e.OwnerUserID,
			&account,
			&e.OccurredAt,
		); err != nil {
			return nil, err
		}

		e.Type = sharegrants.ChangeType(typ)
		if account.Valid {
			e.AccountID = account.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
