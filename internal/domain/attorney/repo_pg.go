package attorney

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/db"
)

var (
	errNotFound        = apperr.NotFound("Attorney not found")
	errProfileNotFound = apperr.NotFound("Attorney profile not found")
	errProfileExists   = apperr.Conflict("Attorney profile already exists for this user")
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileCols = `p.id, p.user_id, p.specialization, p.qualification, p.experience, p.fees,
	p.profile_pic, p.created_at, p.updated_at, u.name, u.email, u.phone, u.address`

const profileFrom = ` FROM attorney_profile p JOIN app_user u ON u.id = p.user_id`

func (r *repoPG) scanProfile(row pgx.Row, notFound error) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Specialization, &p.Qualification, &p.Experience, &p.Fees,
		&p.ProfilePic, &p.CreatedAt, &p.UpdatedAt, &p.Name, &p.Email, &p.Phone, &p.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Fees are passed as text so pgx encodes them as NUMERIC without a float
// round trip.
func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO attorney_profile (id, user_id, specialization, qualification, experience, fees, profile_pic, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, p.Specialization, p.Qualification, p.Experience, p.Fees.String(), p.ProfilePic,
		p.CreatedAt, p.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return errProfileExists
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("User not found")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+profileFrom+` WHERE p.id = $1`, id), errNotFound)
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+profileFrom+` WHERE p.user_id = $1`, userID), errProfileNotFound)
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE attorney_profile SET specialization=$2, qualification=$3, experience=$4, fees=$5,
			profile_pic=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Specialization, p.Qualification, p.Experience, p.Fees.String(), p.ProfilePic)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errProfileNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Profile, error) {
	query := `SELECT ` + profileCols + profileFrom + ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if s := strings.TrimSpace(f.Specialization); s != "" {
		query += fmt.Sprintf(` AND p.specialization ILIKE $%d`, idx)
		args = append(args, "%"+escapeLike(s)+"%")
		idx++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		query += fmt.Sprintf(` AND (u.name ILIKE $%d OR p.specialization ILIKE $%d OR p.qualification ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+escapeLike(s)+"%")
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Profile
	for rows.Next() {
		p, err := r.scanProfile(rows, errNotFound)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
