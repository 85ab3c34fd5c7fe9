package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

// ==========================
// Shifts
// ==========================

func TestStore_ShiftsByIDs(t *testing.T) {
	store, mock := newMockStore(t)
	date := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT s.id, .* FROM shifts s LEFT JOIN "users" u ON u.id = s.user_id WHERE s.id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{11, 12, 99})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "week_code", "shift_date", "day_name", "start_time", "end_time", "user_id", "name"}).
			AddRow(11, "2024-W23", date, "Monday", "09:00:00", "17:00:00", 1, "Anna").
			AddRow(12, "2024-W23", date.AddDate(0, 0, 1), "", "06:00:00", "14:00:00", 2, "Ben"))

	rows, err := store.ShiftsByIDs(context.Background(), []int64{11, 12, 99})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].RecipientID)
	assert.Equal(t, "Anna", rows[0].RecipientName)

	summary := rows[1].Summary()
	assert.Equal(t, "Tuesday", summary.DayName)
	assert.Equal(t, "06:00", summary.Start)
	assert.Equal(t, "14:00", summary.End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ShiftsByIDs_EmptyInputSkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)

	rows, err := store.ShiftsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ShiftsByIDs_QueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM shifts s`).WillReturnError(errors.New("connection reset"))

	_, err := store.ShiftsByIDs(context.Background(), []int64{1})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
}

func TestStore_ShiftIDsForWeek(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id FROM shifts WHERE week_code = \$1`).
		WithArgs("2024-W23").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))

	ids, err := store.ShiftIDsForWeek(context.Background(), "2024-W23")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PublishWeek(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantCode apperrors.ErrorCode
	}{
		{"published", 1, ""},
		{"unknown week", 0, apperrors.ErrCodeWeekNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectExec(`UPDATE weeks SET is_published = TRUE WHERE week_code = \$1`).
				WithArgs("2024-W23").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := store.PublishWeek(context.Background(), "2024-W23")
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.HasCode(err, tt.wantCode))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Recipients
// ==========================

func TestStore_ActiveEmployees(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, COALESCE\(name, ''\) FROM "users" WHERE role = \$1 AND status = \$2`).
		WithArgs("employee", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Anna").AddRow(5, ""))

	refs, err := store.ActiveEmployees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.RecipientRef{{ID: 1, Name: "Anna"}, {ID: 5, Name: ""}}, refs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ContactsByIDs_WithProbedColumns(t *testing.T) {
	store, mock := newMockStore(t)
	cols := models.PreferenceColumns{SMS: "notify_sms", Global: "notifications_enabled"}

	mock.ExpectQuery(`COALESCE\("notify_sms"::boolean, TRUE\), TRUE, COALESCE\("notifications_enabled"::boolean, TRUE\) FROM "users" WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "email", "role", "status", "sms", "email_pref", "global"}).
			AddRow(1, "Anna", " +491511234567 ", "anna@example.com", "employee", "active", false, true, true).
			AddRow(2, "Ben", "", "", "employee", "inactive", true, true, true))

	got, err := store.ContactsByIDs(context.Background(), []int64{1, 2}, cols)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "+491511234567", got[0].Phone)
	assert.False(t, got[0].Preferences.AllowsSMS())
	assert.True(t, got[0].Preferences.AllowsEmail())
	assert.True(t, got[0].Eligible())
	assert.False(t, got[1].Eligible())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ContactsByIDs_NoPreferenceColumns(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`COALESCE\(status, ''\), TRUE, TRUE, TRUE FROM "users"`).
		WithArgs(pq.Array([]int64{7})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "email", "role", "status", "a", "b", "c"}).
			AddRow(7, "Cleo", "", "", "employee", "active", true, true, true))

	got, err := store.ContactsByIDs(context.Background(), []int64{7}, models.PreferenceColumns{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), got[0].Preferences)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ProbePreferenceColumns(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema\(\) AND table_name = \$1`).
		WithArgs("users", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("sms_enabled").
			AddRow("notify_sms").
			AddRow("notifications_enabled"))

	cols, err := store.ProbePreferenceColumns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceColumns{SMS: "notify_sms", Global: "notifications_enabled"}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Templates
// ==========================

func TestStore_TemplateByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM templates WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "subject", "body", "opening_text", "ending_text"}).
			AddRow(3, "BOTH", "Week plan", "Hi {{employeeName}}", "", "Thanks"))

	tmpl, err := store.TemplateByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelBoth, tmpl.Type)
	assert.Equal(t, "Thanks", tmpl.EndingText)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_TemplateByID_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(sqlmock.Sqlmock)
		wantCode apperrors.ErrorCode
	}{
		{
			name: "not found",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`FROM templates`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantCode: apperrors.ErrCodeTemplateNotFound,
		},
		{
			name: "unknown type",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`FROM templates`).
					WillReturnRows(sqlmock.NewRows([]string{"id", "type", "subject", "body", "opening_text", "ending_text"}).
						AddRow(9, "fax", "", "x", "", ""))
			},
			wantCode: apperrors.ErrCodeTemplateInvalidType,
		},
		{
			name: "query error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`FROM templates`).WillReturnError(errors.New("timeout"))
			},
			wantCode: apperrors.ErrCodeQueryExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			tmpl, err := store.TemplateByID(context.Background(), 9)
			assert.Nil(t, tmpl)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

// ==========================
// Reminders
// ==========================

func TestStore_DueReminders(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM reminders WHERE is_active = TRUE AND is_sent = FALSE AND send_at <= \$1`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "week_code", "template_id", "send_at", "is_active", "is_sent"}).
			AddRow(1, "2024-W23", 4, now.Add(-time.Minute), true, false))

	due, err := store.DueReminders(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.True(t, due[0].Due(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkReminderSent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE reminders SET is_sent = TRUE WHERE id = \$1 AND is_sent = FALSE`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE reminders SET is_sent = TRUE`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := store.MarkReminderSent(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.MarkReminderSent(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReminderDue(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS \(\s*SELECT 1 FROM reminders\s*WHERE id = \$1 AND is_active = TRUE AND is_sent = FALSE AND send_at <= \$2`).
		WithArgs(int64(2), now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM reminders`).
		WithArgs(int64(2), now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM reminders`).
		WithArgs(int64(2), now).
		WillReturnError(errors.New("connection refused"))

	due, err := store.ReminderDue(context.Background(), 2, now)
	require.NoError(t, err)
	assert.True(t, due)

	due, err = store.ReminderDue(context.Background(), 2, now)
	require.NoError(t, err)
	assert.False(t, due)

	_, err = store.ReminderDue(context.Background(), 2, now)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
