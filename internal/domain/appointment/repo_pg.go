package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

const (
	activeBookingIndex = "uq_appointments_active_booking"
	patientForeignKey  = "appointments_patient_id_fkey"

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, hospital_id,
	to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
	status, notes, created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.HospitalID,
		&a.AppointmentDate, &a.AppointmentTime, &a.Status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

// insertError maps constraint violations of an insert onto the error
// taxonomy.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == activeBookingIndex:
			return &apperr.DuplicateBookingError{}
		case pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == patientForeignKey:
			return apperr.Invalid("patient_id", "unknown patient")
		}
	}
	return apperr.Storage("create appointment", err)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, hospital_id,
			appointment_date, appointment_time, status, notes)
		VALUES ($1, $2, $3, $4, $5::text::date, $6::text::time, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.HospitalID,
		a.AppointmentDate, a.AppointmentTime, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return insertError(err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, apperr.Storage("get appointment", err)
	}
	return a, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, a *Appointment, from string) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`,
		a.ID, from, a.Status,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Invalid("status", "appointment is no longer %s", from)
	}
	return apperr.Storage("update appointment status", err)
}

func (r *repoPG) CountActive(ctx context.Context, doctorID, hospitalID uuid.UUID, date, slot string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1 AND hospital_id = $2
			AND appointment_date = $3::text::date AND appointment_time = $4::text::time
			AND status IN ('pending', 'confirmed')`,
		doctorID, hospitalID, date, slot,
	).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("count bookings", err)
	}
	return n, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "doctor_id", doctorID, limit, offset)
}

// list is shared by the two listings; column is one of two constants, never
// caller input.
func (r *repoPG) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE `+column+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, apperr.Storage("count appointments", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE `+column+` = $1
		ORDER BY appointment_date DESC, appointment_time DESC, created_at DESC
		LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, apperr.Storage("list appointments", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, apperr.Storage("list appointments", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Storage("list appointments", err)
	}
	return items, total, nil
}
