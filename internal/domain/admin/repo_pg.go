package admin

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

const profileCols = `p.id, p.user_id, p.permissions, p.created_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Permissions, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	if p.Permissions == nil {
		p.Permissions = []string{}
	}
	return &p, nil
}

const detailCols = profileCols + `, u.name, u.email, u.phone, u.role`

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.UserID, &d.Permissions, &d.CreatedAt, &d.Name, &d.Email, &d.Phone, &d.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAbsent
	}
	if err != nil {
		return nil, err
	}
	if d.Permissions == nil {
		d.Permissions = []string{}
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	if p.Permissions == nil {
		p.Permissions = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admin_profile (id, user_id, permissions, created_at)
		VALUES ($1, $2, $3, $4)`,
		p.ID, p.UserID, p.Permissions, p.CreatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return errAlreadyAdmin
	case db.IsForeignKeyViolation(err):
		return errUserAbsent
	}
	return err
}

func (r *repoPG) GetByUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM admin_profile p WHERE p.user_id = $1`, userID))
}

func (r *repoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, `SELECT `+detailCols+`
		FROM admin_profile p JOIN app_user u ON u.id = p.user_id
		WHERE p.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context) ([]*Detail, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+detailCols+`
		FROM admin_profile p JOIN app_user u ON u.id = p.user_id
		ORDER BY p.created_at DESC`)
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

func (r *repoPG) UpdatePermissions(ctx context.Context, id uuid.UUID, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE admin_profile SET permissions = $2 WHERE id = $1`, id, permissions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAbsent
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`DELETE FROM admin_profile p WHERE p.id = $1 RETURNING `+profileCols, id))
}
