package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counsel/counsel/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const feedbackCols = `f.id, f.user_id, f.subject, f.message, f.rating, f.status, f.admin_response,
	f.responded_by, f.responded_at, f.created_at, f.updated_at`

func scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.UserID, &f.Subject, &f.Message, &f.Rating, &f.Status, &f.AdminResponse,
		&f.RespondedBy, &f.RespondedAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const detailCols = feedbackCols + `, u.name, u.email, u.phone, r.name, r.email`

const detailFrom = ` FROM feedback f
	JOIN app_user u ON u.id = f.user_id
	LEFT JOIN app_user r ON r.id = f.responded_by`

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	var rName, rEmail *string
	err := row.Scan(&d.ID, &d.UserID, &d.Subject, &d.Message, &d.Rating, &d.Status, &d.AdminResponse,
		&d.RespondedBy, &d.RespondedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.User.Name, &d.User.Email, &d.User.Phone, &rName, &rEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	d.User.ID = d.UserID
	if d.RespondedBy != nil && rName != nil {
		d.Responder = &Person{ID: *d.RespondedBy, Name: *rName}
		if rEmail != nil {
			d.Responder.Email = *rEmail
		}
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, f *Feedback) error {
	f.ID = uuid.New()
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO feedback (id, user_id, subject, message, rating, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		f.ID, f.UserID, f.Subject, f.Message, f.Rating, f.Status, f.CreatedAt, f.UpdatedAt)
	return err
}

func (r *repoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, `SELECT `+detailCols+detailFrom+` WHERE f.id = $1`, id))
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Feedback, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+feedbackCols+` FROM feedback f
		WHERE f.user_id = $1 ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *repoPG) ListAll(ctx context.Context, status string) ([]*Detail, error) {
	query := `SELECT ` + detailCols + detailFrom
	var args []interface{}
	if status != "" {
		query += ` WHERE f.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY f.created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *repoPG) exec(ctx context.Context, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAbsent
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return r.exec(ctx, `UPDATE feedback SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *repoPG) Respond(ctx context.Context, id uuid.UUID, response string, by uuid.UUID, at time.Time, status *Status) error {
	return r.exec(ctx, `
		UPDATE feedback
		SET admin_response = $2, responded_by = $3, responded_at = $4,
		    status = COALESCE($5, status), updated_at = NOW()
		WHERE id = $1`, id, response, by, at, status)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
}

func (r *repoPG) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM feedback WHERE status = $1`, status).Scan(&n)
	return n, err
}
