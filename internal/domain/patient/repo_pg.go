package patient

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outpatient/ledger/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Get(ctx context.Context, patientID string) (*Profile, error) {
	var p Profile
	var born *time.Time
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT patient_id, name, gender, birth_date, phone, insured, allergies, medical_history, updated_at
		FROM patient_profile WHERE patient_id = $1`, patientID).Scan(
		&p.PatientID, &p.Name, &p.Gender, &born, &p.Phone, &p.Insured,
		&p.Allergies, &p.MedicalHistory, &p.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "profile "+patientID)
	}
	if born != nil {
		s := born.Format(dateLayout)
		p.BirthDate = &s
	}
	return &p, nil
}

func (r *repoPG) Save(ctx context.Context, p *Profile) error {
	var born *time.Time
	if p.BirthDate != nil {
		t, err := time.Parse(dateLayout, *p.BirthDate)
		if err != nil {
			return err
		}
		born = &t
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_profile (patient_id, name, gender, birth_date, phone, insured, allergies, medical_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (patient_id) DO UPDATE SET
			name = EXCLUDED.name, gender = EXCLUDED.gender, birth_date = EXCLUDED.birth_date,
			phone = EXCLUDED.phone, insured = EXCLUDED.insured, allergies = EXCLUDED.allergies,
			medical_history = EXCLUDED.medical_history, updated_at = NOW()
		RETURNING updated_at`,
		p.PatientID, p.Name, p.Gender, born, p.Phone, p.Insured, p.Allergies, p.MedicalHistory,
	).Scan(&p.UpdatedAt)
	return db.MapError(err, "profile "+p.PatientID)
}
