package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"prescription-share/internal/domain/prescriptions"
)

// Esquema esperado (prescriptions):
//   id TEXT PRIMARY KEY,
//   doctor_user_id TEXT NOT NULL,
//   patient_info / medications / clinical_info / doctor_info JSONB NOT NULL,
//   created_at TIMESTAMPTZ NOT NULL
// Índice secundario por doctor_user_id.

type PrescriptionsRepo struct {
	db *sql.DB
}

func NewPrescriptionsRepo(db *sql.DB) *PrescriptionsRepo {
	return &PrescriptionsRepo{db: db}
}

func (r *PrescriptionsRepo) Create(ctx context.Context, p prescriptions.Prescription) error {
	patient, err := json.Marshal(p.Patient)
	if err != nil {
		return err
	}
	meds, err := json.Marshal(p.Medications)
	if err != nil {
		return err
	}
	clinical, err := json.Marshal(p.Clinical)
	if err != nil {
		return err
	}
	doctor, err := json.Marshal(p.Doctor)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO prescriptions (
			id, doctor_user_id,
			patient_info, medications, clinical_info, doctor_info,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		p.ID,
		p.DoctorUserID,
		patient,
		meds,
		clinical,
		doctor,
		p.CreatedAt,
	)
	return err
}

func (r *PrescriptionsRepo) GetByID(ctx context.Context, id string) (prescriptions.Prescription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return prescriptions.Prescription{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, doctor_user_id, patient_info, medications, clinical_info, doctor_info, created_at
		FROM prescriptions
		WHERE id = $1
	`, id)

	return scanPrescription(row)
}

func (r *PrescriptionsRepo) ListByDoctor(ctx context.Context, doctorUserID string) ([]prescriptions.Prescription, error) {
	doctorUserID = strings.TrimSpace(doctorUserID)
	if doctorUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, doctor_user_id, patient_info, medications, clinical_info, doctor_info, created_at
		FROM prescriptions
		WHERE doctor_user_id = $1
		ORDER BY created_at DESC
	`, doctorUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]prescriptions.Prescription, 0)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PrescriptionsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrescription(row rowScanner) (prescriptions.Prescription, error) {
	var p prescriptions.Prescription
	var patient, meds, clinical, doctor []byte

	if err := row.Scan(
		&p.ID,
		&p.DoctorUserID,
		&patient,
		&meds,
		&clinical,
		&doctor,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return prescriptions.Prescription{}, ErrNotFound
		}
		return prescriptions.Prescription{}, err
	}

	if err := json.Unmarshal(patient, &p.Patient); err != nil {
		return prescriptions.Prescription{}, err
	}
	if err := json.Unmarshal(meds, &p.Medications); err != nil {
		return prescriptions.Prescription{}, err
	}
	if err := json.Unmarshal(clinical, &p.Clinical); err != nil {
		return prescriptions.Prescription{}, err
	}
	if err := json.Unmarshal(doctor, &p.Doctor); err != nil {
		return prescriptions.Prescription{}, err
	}
	return p, nil
}
