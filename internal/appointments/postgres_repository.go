package appointments

import (
	"context"
	"errors"
	"time"

	"agenda-backend/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	pool *db.Pool
}

func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const appointmentColumns = `id, name, email, phone, company, service, date, time_slot, message,
	status, cancellation_token, reminder_sent, created_at, updated_at`

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.Company,
		&a.Service,
		&a.Date,
		&a.TimeSlot,
		&a.Message,
		&a.Status,
		&a.CancellationToken,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	a.SlotHeld = holdsSlot(a.Status)
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) Create(ctx context.Context, appt Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		appt.ID, appt.Name, appt.Email, appt.Phone, appt.Company, appt.Service,
		appt.Date, appt.TimeSlot, appt.Message, appt.Status, appt.CancellationToken,
		appt.ReminderSent, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrSlotUnavailable
	}
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE cancellation_token = $1`, token))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) (Appointment, error) {
	updated, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			updated_at = $4,
			reminder_sent = CASE WHEN $3 = 'cancelled' THEN FALSE ELSE reminder_sent END
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, from, to, at,
	))
	switch {
	case err == nil:
		return updated, nil
	case isUniqueViolation(err):
		return Appointment{}, ErrSlotUnavailable
	case !errors.Is(err, ErrNotFound):
		return Appointment{}, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return Appointment{}, getErr
	}
	return Appointment{}, ErrStaleStatus
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) HeldSlots(ctx context.Context, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot FROM appointments
		WHERE date = $1 AND status IN ('pending', 'confirmed')
		ORDER BY time_slot
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]string, 0)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status string, limit int64) ([]Appointment, error) {
	if status == "" {
		return r.query(ctx, `
			SELECT `+appointmentColumns+` FROM appointments
			ORDER BY date, time_slot
			LIMIT $1
		`, limit)
	}
	return r.query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = $1
		ORDER BY date, time_slot
		LIMIT $2
	`, status, limit)
}

func (r *PostgresRepository) ListUpcoming(ctx context.Context, fromDate string, limit int64) ([]Appointment, error) {
	return r.query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE date >= $1 AND status IN ('pending', 'confirmed')
		ORDER BY date, time_slot
		LIMIT $2
	`, fromDate, limit)
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) ListReminderCandidates(ctx context.Context, date string) ([]Appointment, error) {
	return r.query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE date = $1 AND status = 'confirmed' AND NOT reminder_sent
		ORDER BY time_slot
	`, date)
}

func (r *PostgresRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = TRUE, updated_at = $2
		WHERE id = $1 AND status = 'confirmed' AND NOT reminder_sent
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
