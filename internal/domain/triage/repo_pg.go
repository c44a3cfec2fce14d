package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/phi"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// -- Triage Session --

type sessionRepoPG struct{ conn queryable }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{conn: pool}
}

const sessionCols = `id, user_id, answers, score, urgent, recommendations, created_at`

func (r *sessionRepoPG) scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var answers, recs []byte
	if err := row.Scan(&s.ID, &s.UserID, &answers, &s.Score, &s.Urgent, &recs, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(recs, &s.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations of session %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return err
	}
	recs, err := json.Marshal(s.Recommendations)
	if err != nil {
		return err
	}
	s.ID = uuid.New()
	return r.conn.QueryRow(ctx, `
		INSERT INTO triage_session (id, user_id, answers, score, urgent, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		s.ID, s.UserID, answers, s.Score, s.Urgent, recs,
	).Scan(&s.CreatedAt)
}

func sessionWhere(f SessionFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	var args []interface{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if f.Urgent != nil {
		args = append(args, *f.Urgent)
		where += fmt.Sprintf(` AND urgent = $%d`, len(args))
	}
	return where, args
}

func (r *sessionRepoPG) List(ctx context.Context, f SessionFilter, limit, offset int) ([]*Session, error) {
	where, args := sessionWhere(f)
	query := `SELECT ` + sessionCols + ` FROM triage_session` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *sessionRepoPG) Count(ctx context.Context, f SessionFilter) (int, error) {
	where, args := sessionWhere(f)
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM triage_session`+where, args...).Scan(&n)
	return n, err
}

// -- Symptom --

type symptomRepoPG struct {
	conn queryable
	enc  phi.FieldEncryptor
}

func NewSymptomRepoPG(pool *pgxpool.Pool) SymptomRepository {
	return &symptomRepoPG{conn: pool, enc: phi.Plaintext{}}
}

// NewSymptomRepoPGWithEncryption stores descriptions sealed by enc and opens
// them on read.
func NewSymptomRepoPGWithEncryption(pool *pgxpool.Pool, enc phi.FieldEncryptor) SymptomRepository {
	return &symptomRepoPG{conn: pool, enc: enc}
}

const symptomCols = `id, user_id, description, recorded_at`

func (r *symptomRepoPG) scanSymptom(row pgx.Row) (*Symptom, error) {
	var s Symptom
	var stored string
	if err := row.Scan(&s.ID, &s.UserID, &stored, &s.RecordedAt); err != nil {
		return nil, err
	}
	desc, err := r.enc.Decrypt(stored)
	if err != nil {
		return nil, fmt.Errorf("decrypt symptom %s: %w", s.ID, err)
	}
	s.Description = desc
	return &s, nil
}

func (r *symptomRepoPG) Create(ctx context.Context, s *Symptom) error {
	sealed, err := r.enc.Encrypt(s.Description)
	if err != nil {
		return err
	}
	s.ID = uuid.New()
	return r.conn.QueryRow(ctx, `
		INSERT INTO symptom (id, user_id, description)
		VALUES ($1, $2, $3)
		RETURNING recorded_at`,
		s.ID, s.UserID, sealed,
	).Scan(&s.RecordedAt)
}

func (r *symptomRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Symptom, error) {
	s, err := r.scanSymptom(r.conn.QueryRow(ctx, `SELECT `+symptomCols+` FROM symptom WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *symptomRepoPG) Update(ctx context.Context, s *Symptom) error {
	sealed, err := r.enc.Encrypt(s.Description)
	if err != nil {
		return err
	}
	tag, err := r.conn.Exec(ctx, `UPDATE symptom SET description = $2 WHERE id = $1`, s.ID, sealed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *symptomRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM symptom WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *symptomRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Symptom, int, error) {
	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM symptom WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn.Query(ctx, `SELECT `+symptomCols+` FROM symptom WHERE user_id = $1
		ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Symptom
	for rows.Next() {
		s, err := r.scanSymptom(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
