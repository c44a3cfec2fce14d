package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct{ conn queryable }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{conn: pool}
}

const apptCols = `id, user_id, start_time, reason, status, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(&a.ID, &a.UserID, &a.StartTime, &a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrRecordNotFound
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case db.IsCheckViolation(err):
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn.QueryRow(ctx, `
		INSERT INTO appointment (id, user_id, start_time, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.StartTime, a.Reason, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	return a, translate(err)
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn.QueryRow(ctx, `
		UPDATE appointment SET start_time = $2, reason = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.StartTime, a.Reason, a.Status,
	).Scan(&a.UpdatedAt)
	return translate(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ExistsAt(ctx context.Context, ts time.Time, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment WHERE start_time = $1 AND id <> $2)`,
		ts, exclude,
	).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) StartTimesBetween(ctx context.Context, from, until time.Time) ([]time.Time, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT start_time FROM appointment WHERE start_time >= $1 AND start_time < $2 ORDER BY start_time`,
		from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) List(ctx context.Context, q ListQuery) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if q.UserID != nil {
		where += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, *q.UserID)
		idx++
	}
	if q.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, q.Status)
		idx++
	}
	if q.From != nil {
		where += fmt.Sprintf(` AND start_time >= $%d`, idx)
		args = append(args, *q.From)
		idx++
	}
	if q.Until != nil {
		where += fmt.Sprintf(` AND start_time < $%d`, idx)
		args = append(args, *q.Until)
		idx++
	}

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
