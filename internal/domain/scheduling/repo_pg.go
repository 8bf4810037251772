package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/counsel/counsel/internal/platform/apperr"
	"github.com/counsel/counsel/internal/platform/db"
	"github.com/counsel/counsel/pkg/calendar"
	"github.com/counsel/counsel/pkg/pagination"
)

const activeSlotIndex = "appointment_active_slot_key"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, user_id, attorney_id, date, time_slot, symptoms, notes, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.AttorneyID, &a.Date, &a.TimeSlot, &a.Symptoms,
		&a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAppointmentAbsent
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Client and attorney display fields are joined at read time. The attorney
// name comes from the profile's owning user.
const detailCols = `a.id, a.user_id, a.attorney_id, a.date, a.time_slot, a.symptoms, a.notes,
	a.status, a.created_at, a.updated_at,
	cu.name, cu.email, cu.phone,
	au.name, au.email, au.phone, p.specialization, p.fees`

const detailFrom = ` FROM appointment a
	JOIN app_user cu ON cu.id = a.user_id
	JOIN attorney_profile p ON p.id = a.attorney_id
	JOIN app_user au ON au.id = p.user_id`

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	err := row.Scan(&d.ID, &d.UserID, &d.AttorneyID, &d.Date, &d.TimeSlot, &d.Symptoms, &d.Notes,
		&d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.Client.Name, &d.Client.Email, &d.Client.Phone,
		&d.Attorney.Name, &d.Attorney.Email, &d.Attorney.Phone, &d.Specialization, &d.Fees)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errAppointmentAbsent
	}
	if err != nil {
		return nil, err
	}
	d.Client.ID = d.UserID
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

// mapWriteErr translates constraint violations. The partial unique index on
// active slots turns a lost check-then-insert race into ErrSlotBooked.
func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err) && db.ConstraintName(err) == activeSlotIndex:
		return ErrSlotBooked
	case db.IsUniqueViolation(err):
		return apperr.Conflict("Appointment already exists")
	case db.IsForeignKeyViolation(err):
		if db.ConstraintName(err) == "appointment_user_id_fkey" {
			return apperr.NotFound("User not found")
		}
		return apperr.NotFound("Attorney not found")
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, user_id, attorney_id, date, time_slot, symptoms, notes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.UserID, a.AttorneyID, a.Date, a.TimeSlot, a.Symptoms, a.Notes, a.Status,
		a.CreatedAt, a.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.conn(ctx).QueryRow(ctx, `SELECT `+detailCols+detailFrom+` WHERE a.id = $1`, id))
}

func (r *repoPG) SlotTaken(ctx context.Context, attorneyID uuid.UUID, date calendar.Date, slot string) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE attorney_id = $1 AND date = $2 AND time_slot = $3
			  AND status IN ('Pending', 'Confirmed'))`,
		attorneyID, date, slot).Scan(&taken)
	return taken, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errAppointmentAbsent
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAppointmentAbsent
	}
	return nil
}

func (r *repoPG) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE a.user_id = $1 ORDER BY a.date ASC, a.time_slot ASC`, userID)
}

func (r *repoPG) ListByAttorney(ctx context.Context, attorneyID uuid.UUID) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		WHERE a.attorney_id = $1 ORDER BY a.date ASC, a.time_slot ASC`, attorneyID)
}

func (r *repoPG) ListAll(ctx context.Context, page pagination.Params) ([]*Detail, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+`
		ORDER BY a.date DESC, a.time_slot DESC`+page.SQL())
	return items, total, err
}

var markExpiredSQL = `
	UPDATE appointment SET status = 'Expired', updated_at = NOW()
	WHERE date <= $1 AND status NOT IN (` + sqlList(sweepExempt) + `)`

func (r *repoPG) MarkExpired(ctx context.Context, today calendar.Date) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, markExpiredSQL, today)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM appointment GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int, len(Statuses))
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) Recent(ctx context.Context, n int) ([]*Detail, error) {
	return r.queryDetails(ctx, `SELECT `+detailCols+detailFrom+` ORDER BY a.created_at DESC LIMIT $1`, n)
}
