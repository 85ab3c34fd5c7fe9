package postgres

import (
	"context"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"

	"github.com/lib/pq"
)

const shiftsByIDsQuery = `
SELECT s.id, s.week_code, s.shift_date, COALESCE(s.day_name, ''),
       s.start_time::text, s.end_time::text, s.user_id, COALESCE(u.name, '')
FROM shifts s
LEFT JOIN %s u ON u.id = s.user_id
WHERE s.id = ANY($1) AND s.user_id IS NOT NULL
ORDER BY s.shift_date, s.start_time, s.id`

// ShiftsByIDs loads the assigned shifts among ids. Unknown ids and
// unassigned shifts are silently absent from the result.
func (s *Store) ShiftsByIDs(ctx context.Context, ids []int64) ([]models.ShiftRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.withUsersTable(shiftsByIDsQuery), pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("shifts_by_ids", err)
	}
	defer rows.Close()

	var out []models.ShiftRow
	for rows.Next() {
		var (
			r    models.ShiftRow
			date time.Time
		)
		if err := rows.Scan(&r.ID, &r.WeekCode, &date, &r.DayName, &r.StartTime, &r.EndTime, &r.RecipientID, &r.RecipientName); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("shifts_by_ids", err)
		}
		r.Date = date
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("shifts_by_ids", err)
	}
	return out, nil
}

// ShiftIDsForWeek returns every shift id belonging to the week.
func (s *Store) ShiftIDsForWeek(ctx context.Context, weekCode string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM shifts WHERE week_code = $1 ORDER BY id`, weekCode)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("shift_ids_for_week", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("shift_ids_for_week", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("shift_ids_for_week", err)
	}
	return ids, nil
}

// PublishWeek sets the published flag of a week. Publishing an already
// published week is not an error.
func (s *Store) PublishWeek(ctx context.Context, weekCode string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE weeks SET is_published = TRUE WHERE week_code = $1`, weekCode)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("publish_week", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("publish_week", err)
	}
	if n == 0 {
		return apperrors.NewWeekNotFoundError(weekCode)
	}

	s.logger.Info("Week published", map[string]interface{}{"weekCode": weekCode})
	return nil
}
