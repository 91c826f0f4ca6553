package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const ruleCols = `id, doctor_id, hospital_id, day_of_week,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	slot_duration_minutes, max_patients_per_slot, is_active, created_at, updated_at`

const evaluationOrder = `ORDER BY start_time, created_at, id`

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	err := row.Scan(&r.ID, &r.DoctorID, &r.HospitalID, &r.DayOfWeek,
		&r.StartTime, &r.EndTime, &r.SlotDuration, &r.MaxPatients, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt)
	return &r, err
}

func collectRules(rows pgx.Rows, op string) ([]*Rule, error) {
	defer rows.Close()
	items := []*Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return items, nil
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	rule.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_availability (id, doctor_id, hospital_id, day_of_week,
			start_time, end_time, slot_duration_minutes, max_patients_per_slot, is_active)
		VALUES ($1, $2, $3, $4, $5::text::time, $6::text::time, $7, $8, $9)
		RETURNING created_at, updated_at`,
		rule.ID, rule.DoctorID, rule.HospitalID, rule.DayOfWeek,
		rule.StartTime, rule.EndTime, rule.SlotDuration, rule.MaxPatients, rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	return apperr.Storage("create availability", err)
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	rule, err := scanRule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+ruleCols+` FROM doctor_availability WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("availability", id.String())
	}
	if err != nil {
		return nil, apperr.Storage("get availability", err)
	}
	return rule, nil
}

func (r *ruleRepoPG) Update(ctx context.Context, rule *Rule) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_availability SET day_of_week = $2,
			start_time = $3::text::time, end_time = $4::text::time,
			slot_duration_minutes = $5, max_patients_per_slot = $6, is_active = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime,
		rule.SlotDuration, rule.MaxPatients, rule.IsActive,
	).Scan(&rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("availability", rule.ID.String())
	}
	return apperr.Storage("update availability", err)
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_availability WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("delete availability", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("availability", id.String())
	}
	return nil
}

func (r *ruleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, hospitalID *uuid.UUID) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM doctor_availability
		WHERE doctor_id = $1 AND ($2::uuid IS NULL OR hospital_id = $2)
		ORDER BY day_of_week, start_time, created_at, id`,
		doctorID, hospitalID)
	if err != nil {
		return nil, apperr.Storage("list availability", err)
	}
	return collectRules(rows, "list availability")
}

func (r *ruleRepoPG) ListActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error) {
	return r.active(ctx, doctorID, hospitalID, weekday, "")
}

func (r *ruleRepoPG) LockActive(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int) ([]*Rule, error) {
	if db.TxFromContext(ctx) == nil {
		return nil, apperr.Storage("lock availability", errors.New("row locks require a transaction"))
	}
	// Row locks do not cover a weekday with no rules yet, so the weekday
	// itself is locked too.
	key := fmt.Sprintf("availability:%s:%s:%d", doctorID, hospitalID, weekday)
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, apperr.Storage("lock availability", err)
	}
	return r.active(ctx, doctorID, hospitalID, weekday, " FOR UPDATE")
}

func (r *ruleRepoPG) active(ctx context.Context, doctorID, hospitalID uuid.UUID, weekday int, lock string) ([]*Rule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM doctor_availability
		WHERE doctor_id = $1 AND hospital_id = $2 AND day_of_week = $3 AND is_active
		`+evaluationOrder+lock,
		doctorID, hospitalID, weekday)
	if err != nil {
		return nil, apperr.Storage("list active availability", err)
	}
	return collectRules(rows, "list active availability")
}

type bookingCounterPG struct{ pool *pgxpool.Pool }

func NewBookingCounterPG(pool *pgxpool.Pool) BookingCounter { return &bookingCounterPG{pool: pool} }

func (b *bookingCounterPG) BookedCounts(ctx context.Context, doctorID, hospitalID uuid.UUID, date string) (map[string]int, error) {
	rows, err := db.Conn(ctx, b.pool).Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI'), COUNT(*)
		FROM appointments
		WHERE doctor_id = $1 AND hospital_id = $2 AND appointment_date = $3::text::date
			AND status IN ('pending', 'confirmed')
		GROUP BY appointment_time`,
		doctorID, hospitalID, date)
	if err != nil {
		return nil, apperr.Storage("count bookings", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var at string
		var n int
		if err := rows.Scan(&at, &n); err != nil {
			return nil, apperr.Storage("count bookings", err)
		}
		counts[at] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("count bookings", err)
	}
	return counts, nil
}
