package postgres

import (
	"context"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"

	"github.com/lib/pq"
)

// Candidate preference columns, in priority order.
var (
	SMSPreferenceCandidates    = []string{"notify_sms", "sms_notifications", "sms_enabled"}
	EmailPreferenceCandidates  = []string{"notify_email", "email_notifications", "email_enabled"}
	GlobalPreferenceCandidates = []string{"notifications_enabled", "notify_enabled", "notifications"}
)

// ProbePreferenceColumns inspects the users table once and picks the first
// existing candidate for each preference. Run it at startup and pass the
// result to the contact resolver.
func (s *Store) ProbePreferenceColumns(ctx context.Context) (models.PreferenceColumns, error) {
	var all []string
	all = append(all, SMSPreferenceCandidates...)
	all = append(all, EmailPreferenceCandidates...)
	all = append(all, GlobalPreferenceCandidates...)

	rows, err := s.db.QueryContext(ctx, `
SELECT column_name
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1 AND column_name = ANY($2)`,
		s.usersTable, pq.Array(all))
	if err != nil {
		return models.PreferenceColumns{}, apperrors.NewQueryExecutionFailedError("probe_preference_columns", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return models.PreferenceColumns{}, apperrors.NewQueryExecutionFailedError("probe_preference_columns", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return models.PreferenceColumns{}, apperrors.NewQueryExecutionFailedError("probe_preference_columns", err)
	}

	cols := models.PreferenceColumns{
		SMS:    firstPresent(SMSPreferenceCandidates, present),
		Email:  firstPresent(EmailPreferenceCandidates, present),
		Global: firstPresent(GlobalPreferenceCandidates, present),
	}
	s.logger.Info("Preference columns resolved", map[string]interface{}{
		"table":  s.usersTable,
		"sms":    cols.SMS,
		"email":  cols.Email,
		"global": cols.Global,
	})
	return cols, nil
}

func firstPresent(candidates []string, present map[string]bool) string {
	for _, c := range candidates {
		if present[c] {
			return c
		}
	}
	return ""
}
