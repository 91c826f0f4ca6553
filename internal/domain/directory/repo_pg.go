package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `d.id, d.user_id, d.full_name, d.specialization, d.created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialization, &d.CreatedAt)
	return &d, err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors d WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, apperr.Storage("get doctor", err)
	}
	return d, nil
}

// ListByHospital returns doctors with at least one active availability rule
// at the hospital.
func (r *doctorRepoPG) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	const where = `WHERE EXISTS (
		SELECT 1 FROM doctor_availability a
		WHERE a.doctor_id = d.id AND a.hospital_id = $1 AND a.is_active)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors d `+where, hospitalID).Scan(&total); err != nil {
		return nil, 0, apperr.Storage("count doctors", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctors d `+where+` ORDER BY d.full_name, d.id LIMIT $2 OFFSET $3`,
		hospitalID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Storage("list doctors", err)
	}
	defer rows.Close()

	items := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, apperr.Storage("scan doctor", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Storage("list doctors", err)
	}
	return items, total, nil
}

type hospitalRepoPG struct{ pool *pgxpool.Pool }

func NewHospitalRepoPG(pool *pgxpool.Pool) HospitalRepository { return &hospitalRepoPG{pool: pool} }

func (r *hospitalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	var h Hospital
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, address, created_at FROM hospitals WHERE id = $1`, id,
	).Scan(&h.ID, &h.Name, &h.Address, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("hospital", id.String())
	}
	if err != nil {
		return nil, apperr.Storage("get hospital", err)
	}
	return &h, nil
}
