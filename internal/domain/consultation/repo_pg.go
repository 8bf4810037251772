package consultation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/auth"
	"github.com/counsel/counsel/internal/platform/db"
)

const activePairIndex = "consultation_active_pair_key"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err) && db.ConstraintName(err) == activePairIndex:
		return ErrActiveExists
	case db.IsForeignKeyViolation(err):
		if db.ConstraintName(err) == "consultation_attorney_id_fkey" {
			return apperr.NotFound("Attorney not found")
		}
		if db.ConstraintName(err) == "consultation_message_consultation_id_fkey" {
			return errAbsent
		}
		return apperr.NotFound("User not found")
	}
	return err
}

const consultationCols = `id, client_id, attorney_id, status, subject, created_at, updated_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.ClientID, &c.AttorneyID, &c.Status, &c.Subject, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const detailCols = `c.id, c.client_id, c.attorney_id, c.status, c.subject, c.created_at, c.updated_at,
	cu.name, cu.email, cu.phone, au.name, au.email, au.phone, p.specialization`

const detailFrom = ` FROM consultation c
	JOIN app_user cu ON cu.id = c.client_id
	JOIN attorney_profile p ON p.id = c.attorney_id
	JOIN app_user au ON au.id = p.user_id`

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.ClientID, &d.AttorneyID, &d.Status, &d.Subject, &d.CreatedAt, &d.UpdatedAt,
		&d.Client.Name, &d.Client.Email, &d.Client.Phone,
		&d.Attorney.Name, &d.Attorney.Email, &d.Attorney.Phone, &d.Specialization)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	d.Client.ID = d.ClientID
	d.Attorney.ID = d.AttorneyID
	return &d, nil
}

func (r *repoPG) queryDetails(ctx context.Context, query string, args ...interface{}) ([]*Detail, error) {
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

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation (id, client_id, attorney_id, status, subject, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.ClientID, c.AttorneyID, c.Status, c.Subject, c.CreatedAt, c.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx, `SELECT `+consultationCols+` FROM consultation WHERE id = $1`, id))
}

func (r *repoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, `SELECT `+detailCols+detailFrom+` WHERE c.id = $1`, id))
}

func (r *repoPG) ActiveFor(ctx context.Context, clientID, attorneyID uuid.UUID) (*Consultation, error) {
	return scanConsultation(r.conn(ctx).QueryRow(ctx, `
		SELECT `+consultationCols+` FROM consultation
		WHERE client_id = $1 AND attorney_id = $2 AND status = 'Active'`, clientID, attorneyID))
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE consultation SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errAbsent
	}
	return nil
}

func (r *repoPG) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE consultation SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAbsent
	}
	return nil
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE c.client_id = $1 ORDER BY c.updated_at DESC`, clientID)
}

func (r *repoPG) ListByAttorney(ctx context.Context, attorneyID uuid.UUID) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE c.attorney_id = $1 ORDER BY c.updated_at DESC`, attorneyID)
}

func (r *repoPG) ListAll(ctx context.Context) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+` ORDER BY c.updated_at DESC`)
}

func (r *repoPG) CreateMessage(ctx context.Context, m *Message) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultation_message (id, consultation_id, sender_id, sender_role, message, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.ConsultationID, m.SenderID, m.SenderRole, m.Body, m.Read, m.CreatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) Messages(ctx context.Context, consultationID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.consultation_id, m.sender_id, m.sender_role, m.message, m.read, m.created_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM consultation_message m
		LEFT JOIN app_user u ON u.id = m.sender_id
		WHERE m.consultation_id = $1
		ORDER BY m.id ASC`, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.SenderRole, &m.Body, &m.Read,
			&m.CreatedAt, &m.SenderName, &m.SenderEmail); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, consultationID uuid.UUID, role auth.Role) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultation_message SET read = TRUE
		WHERE consultation_id = $1 AND sender_role = $2 AND read = FALSE`, consultationID, role)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
