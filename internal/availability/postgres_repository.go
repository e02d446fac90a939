package availability

import (
	"context"
	"errors"

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

const ruleColumns = `id, day_of_week, start_time, end_time, slot_duration_minutes, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	err := row.Scan(
		&rule.ID,
		&rule.DayOfWeek,
		&rule.StartTime,
		&rule.EndTime,
		&rule.SlotDurationMinutes,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	return rule, err
}

func (r *PostgresRepository) queryRules(ctx context.Context, sql string, args ...any) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) ListRules(ctx context.Context) ([]Rule, error) {
	return r.queryRules(ctx, `SELECT `+ruleColumns+` FROM time_slot_rules ORDER BY day_of_week, start_time`)
}

func (r *PostgresRepository) ActiveRulesForDay(ctx context.Context, dayOfWeek int) ([]Rule, error) {
	return r.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM time_slot_rules
		WHERE day_of_week = $1 AND is_active
		ORDER BY start_time
	`, dayOfWeek)
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM time_slot_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrRuleNotFound
	}
	return rule, err
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule Rule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO time_slot_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.SlotDurationMinutes, rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	return err
}

func (r *PostgresRepository) ReplaceRule(ctx context.Context, rule Rule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE time_slot_rules
		SET day_of_week = $2,
			start_time = $3,
			end_time = $4,
			slot_duration_minutes = $5,
			is_active = $6,
			updated_at = $7
		WHERE id = $1
	`, rule.ID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.SlotDurationMinutes, rule.IsActive, rule.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM time_slot_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresRepository) IsDateBlocked(ctx context.Context, date string) (bool, error) {
	var blocked bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blocked_dates WHERE date = $1)`, date).Scan(&blocked)
	return blocked, err
}

func (r *PostgresRepository) ListBlockedDates(ctx context.Context, from string) ([]BlockedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, reason, created_at
		FROM blocked_dates
		WHERE $1 = '' OR date >= $1
		ORDER BY date
	`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]BlockedDate, 0)
	for rows.Next() {
		var b BlockedDate
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) CreateBlockedDate(ctx context.Context, blocked BlockedDate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_dates (id, date, reason, created_at)
		VALUES ($1, $2, $3, $4)
	`, blocked.ID, blocked.Date, blocked.Reason, blocked.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDateAlreadyBlocked
	}
	return err
}

func (r *PostgresRepository) DeleteBlockedDate(ctx context.Context, id string) (BlockedDate, error) {
	var b BlockedDate
	err := r.pool.QueryRow(ctx, `
		DELETE FROM blocked_dates
		WHERE id = $1
		RETURNING id, date, reason, created_at
	`, id).Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BlockedDate{}, ErrBlockedDateNotFound
	}
	return b, err
}
