package postgres

import (
	"context"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"
)

// DueReminders returns active, unsent reminders whose send time has passed.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, week_code, template_id, send_at, is_active, is_sent
FROM reminders
WHERE is_active = TRUE AND is_sent = FALSE AND send_at <= $1
ORDER BY send_at, id`, now)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("due_reminders", err)
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.WeekCode, &r.TemplateID, &r.SendAt, &r.IsActive, &r.IsSent); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("due_reminders", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("due_reminders", err)
	}
	return out, nil
}

// MarkReminderSent flips is_sent for an unsent reminder. It reports false
// when the reminder was already marked by someone else.
func (s *Store) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET is_sent = TRUE WHERE id = $1 AND is_sent = FALSE`, id)
	if err != nil {
		return false, apperrors.NewReminderUpdateFailedError(id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewReminderUpdateFailedError(id, err)
	}
	return n == 1, nil
}

// ReminderDue re-reads a single reminder and reports whether it is still
// active, unsent and past its send time.
func (s *Store) ReminderDue(ctx context.Context, id int64, now time.Time) (bool, error) {
	var due bool
	err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM reminders
	WHERE id = $1 AND is_active = TRUE AND is_sent = FALSE AND send_at <= $2
)`, id, now).Scan(&due)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("reminder_due", err)
	}
	return due, nil
}
