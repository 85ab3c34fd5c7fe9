package models

import "time"

// ShiftRow is one assigned shift as read from the store.
type ShiftRow struct {
	ID            int64
	WeekCode      string
	Date          time.Time
	DayName       string
	StartTime     string
	EndTime       string
	RecipientID   int64
	RecipientName string
}

// Summary projects the row onto what a message shows.
func (r ShiftRow) Summary() ShiftSummary {
	day := r.DayName
	if day == "" && !r.Date.IsZero() {
		day = r.Date.Weekday().String()
	}
	return ShiftSummary{
		Date:    r.Date,
		DayName: day,
		Start:   clockTime(r.StartTime),
		End:     clockTime(r.EndTime),
	}
}

// ShiftSummary is derived per run and never persisted.
type ShiftSummary struct {
	Date    time.Time `json:"date"`
	DayName string    `json:"dayName"`
	Start   string    `json:"start"`
	End     string    `json:"end"`
}

// clockTime trims a TIME column value such as "09:00:00" to "09:00".
func clockTime(s string) string {
	if len(s) >= 5 && s[2] == ':' {
		return s[:5]
	}
	return s
}

// RecipientShifts is the per-recipient view produced by the resolver.
type RecipientShifts struct {
	RecipientID int64
	Name        string
	Shifts      []ShiftSummary
}

// Reminder is a scheduled future dispatch. IsSent is the only guard against
// firing twice.
type Reminder struct {
	ID         int64     `json:"id"`
	WeekCode   string    `json:"weekCode"`
	TemplateID int64     `json:"templateId"`
	SendAt     time.Time `json:"sendAt"`
	IsActive   bool      `json:"isActive"`
	IsSent     bool      `json:"isSent"`
}

// Due reports whether the reminder should fire at now.
func (r Reminder) Due(now time.Time) bool {
	return r.IsActive && !r.IsSent && !r.SendAt.After(now)
}
