package labtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/db"
	"github.com/counsel/counsel/pkg/pagination"
)

const nameKey = "lab_test_name_key"

var (
	errTestAbsent    = apperr.NotFound("Lab test not found")
	errBookingAbsent = apperr.NotFound("Lab test booking not found")
	errNameTaken     = apperr.Conflict("Lab test with this name already exists")
)

type catalogPG struct{ pool *pgxpool.Pool }

func NewCatalogRepoPG(pool *pgxpool.Pool) CatalogRepository { return &catalogPG{pool: pool} }

func (r *catalogPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const testCols = `id, test_name, description, price, created_at, updated_at`

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errTestAbsent
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapCatalogErr(err error) error {
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == nameKey {
		return errNameTaken
	}
	return err
}

func (r *catalogPG) Create(ctx context.Context, t *Test) error {
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test (id, test_name, description, price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.Name, t.Description, t.Price.String(), t.CreatedAt, t.UpdatedAt)
	return mapCatalogErr(err)
}

func (r *catalogPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	return scanTest(r.conn(ctx).QueryRow(ctx, `SELECT `+testCols+` FROM lab_test WHERE id = $1`, id))
}

func (r *catalogPG) NameTaken(ctx context.Context, name string, exclude uuid.UUID) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lab_test WHERE test_name = $1 AND id <> $2)`, name, exclude).Scan(&taken)
	return taken, err
}

func (r *catalogPG) Update(ctx context.Context, t *Test) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET test_name = $2, description = $3, price = $4, updated_at = $5
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Price.String(), t.UpdatedAt)
	if err != nil {
		return mapCatalogErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errTestAbsent
	}
	return nil
}

// Delete counts references and deletes in one statement. A booking inserted
// between the count and the delete trips the RESTRICT foreign key, which is
// reported as a reference count as well.
func (r *catalogPG) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	var refs, deleted int
	var existed bool
	err := r.conn(ctx).QueryRow(ctx, `
		WITH refs AS (SELECT COUNT(*) AS n FROM lab_test_booking WHERE test_id = $1),
		del AS (
			DELETE FROM lab_test WHERE id = $1 AND (SELECT n FROM refs) = 0
			RETURNING id)
		SELECT (SELECT n FROM refs),
		       EXISTS (SELECT 1 FROM lab_test WHERE id = $1),
		       (SELECT COUNT(*) FROM del)`, id).Scan(&refs, &existed, &deleted)
	if db.IsForeignKeyViolation(err) {
		var n int
		if err := r.conn(ctx).QueryRow(ctx,
			`SELECT COUNT(*) FROM lab_test_booking WHERE test_id = $1`, id).Scan(&n); err != nil {
			return 0, err
		}
		return max(n, 1), nil
	}
	if err != nil {
		return 0, err
	}
	if !existed {
		return 0, errTestAbsent
	}
	return refs, nil
}

func (r *catalogPG) List(ctx context.Context) ([]*Test, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+testCols+` FROM lab_test ORDER BY test_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type bookingPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingPG{pool: pool} }

func (r *bookingPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const detailCols = `b.id, b.user_id, b.test_id, b.date, b.time_slot, b.notes, b.status,
	b.created_at, b.updated_at, u.name, u.email, u.phone, t.test_name, t.description, t.price`

const detailFrom = ` FROM lab_test_booking b
	JOIN app_user u ON u.id = b.user_id
	JOIN lab_test t ON t.id = b.test_id`

func scanDetail(row pgx.Row) (*BookingDetail, error) {
	var d BookingDetail
	err := row.Scan(&d.ID, &d.UserID, &d.TestID, &d.Date, &d.TimeSlot, &d.Notes, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &d.Client.Name, &d.Client.Email, &d.Client.Phone,
		&d.Test.Name, &d.Test.Description, &d.Test.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errBookingAbsent
	}
	if err != nil {
		return nil, err
	}
	d.Client.ID = d.UserID
	d.Test.ID = d.TestID
	return &d, nil
}

func (r *bookingPG) queryDetails(ctx context.Context, query string, args ...interface{}) ([]*BookingDetail, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*BookingDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *bookingPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test_booking (id, user_id, test_id, date, time_slot, notes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.UserID, b.TestID, b.Date, b.TimeSlot, b.Notes, b.Status, b.CreatedAt, b.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		if db.ConstraintName(err) == "lab_test_booking_user_id_fkey" {
			return apperr.NotFound("User not found")
		}
		return errTestAbsent
	}
	return err
}

func (r *bookingPG) GetDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, `SELECT `+detailCols+detailFrom+` WHERE b.id = $1`, id))
}

func (r *bookingPG) UpdateStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE lab_test_booking SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errBookingAbsent
	}
	return nil
}

func (r *bookingPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_test_booking WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errBookingAbsent
	}
	return nil
}

func (r *bookingPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*BookingDetail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE b.user_id = $1 ORDER BY b.date ASC, b.time_slot ASC`, userID)
}

func (r *bookingPG) ListAll(ctx context.Context, page pagination.Params) ([]*BookingDetail, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		ORDER BY b.date DESC, b.time_slot DESC`+page.SQL())
	return items, total, err
}

func (r *bookingPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_test_booking`).Scan(&n)
	return n, err
}
