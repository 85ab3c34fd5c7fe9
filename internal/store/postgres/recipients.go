package postgres

import (
	"context"
	"fmt"
	"strings"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"

	"github.com/lib/pq"
)

// ActiveEmployees lists every recipient that is currently an active employee.
func (s *Store) ActiveEmployees(ctx context.Context) ([]models.RecipientRef, error) {
	query := s.withUsersTable(`SELECT id, COALESCE(name, '') FROM %s WHERE role = $1 AND status = $2 ORDER BY id`)
	rows, err := s.db.QueryContext(ctx, query, models.RoleEmployee, models.StatusActive)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("active_employees", err)
	}
	defer rows.Close()

	var out []models.RecipientRef
	for rows.Next() {
		var ref models.RecipientRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("active_employees", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("active_employees", err)
	}
	return out, nil
}

// ContactsByIDs loads contacts, role, status and preferences for ids in one
// query. Preference columns come from a startup probe; a missing column reads
// as enabled.
func (s *Store) ContactsByIDs(ctx context.Context, ids []int64, cols models.PreferenceColumns) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.contactsQuery(cols), pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("contacts_by_ids", err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(
			&r.ID, &r.DisplayName, &r.Phone, &r.Email, &r.Role, &r.Status,
			&r.Preferences.SMSEnabled, &r.Preferences.EmailEnabled, &r.Preferences.GloballyEnabled,
		); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("contacts_by_ids", err)
		}
		r.Phone = strings.TrimSpace(r.Phone)
		r.Email = strings.TrimSpace(r.Email)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("contacts_by_ids", err)
	}
	return out, nil
}

func (s *Store) contactsQuery(cols models.PreferenceColumns) string {
	return fmt.Sprintf(`SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''),
       COALESCE(role, ''), COALESCE(status, ''), %s, %s, %s
FROM %s
WHERE id = ANY($1)`,
		preferenceExpr(cols.SMS), preferenceExpr(cols.Email), preferenceExpr(cols.Global),
		pq.QuoteIdentifier(s.usersTable))
}

func preferenceExpr(column string) string {
	if column == "" {
		return "TRUE"
	}
	return fmt.Sprintf("COALESCE(%s::boolean, TRUE)", pq.QuoteIdentifier(column))
}

func (s *Store) withUsersTable(query string) string {
	return fmt.Sprintf(query, pq.QuoteIdentifier(s.usersTable))
}
