// Package render turns a template plus a recipient's shifts into message
// text. Everything here is pure: identical inputs give identical output.
package render

import (
	"fmt"
	"sort"
	"strings"

	"shift-notify/internal/models"
)

const (
	PlaceholderName   = "{{employeeName}}"
	PlaceholderShifts = "{{shifts}}"

	// NoShiftsText replaces the shift block for recipients without shifts.
	NoShiftsText = "You have no shifts scheduled this week."

	DefaultSubject = "Notification"

	dateLayout = "2006-01-02"
)

// Message is the rendered output for one recipient.
type Message struct {
	Subject   string
	Text      string
	EmailHTML string
}

// Render builds the message for one recipient. An empty name falls back to
// "Employee#<id>".
func Render(tmpl models.Template, recipientID int64, name string, shifts []models.ShiftSummary) Message {
	if strings.TrimSpace(name) == "" {
		name = FallbackName(recipientID)
	}

	text := strings.ReplaceAll(tmpl.Body, PlaceholderName, name)
	text = strings.ReplaceAll(text, PlaceholderShifts, ShiftBlock(shifts))

	if tmpl.OpeningText != "" {
		text = tmpl.OpeningText + "\n\n" + text
	}
	if tmpl.EndingText != "" {
		text = text + "\n\n" + tmpl.EndingText
	}

	subject := tmpl.Subject
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	subject = strings.ReplaceAll(subject, PlaceholderName, name)

	return Message{
		Subject:   subject,
		Text:      text,
		EmailHTML: strings.ReplaceAll(text, "\n", "<br>"),
	}
}

func FallbackName(recipientID int64) string {
	return fmt.Sprintf("Employee#%d", recipientID)
}

// ShiftBlock renders one line per shift, ordered by date then start time.
// The input slice is not modified.
func ShiftBlock(shifts []models.ShiftSummary) string {
	if len(shifts) == 0 {
		return NoShiftsText
	}

	sorted := make([]models.ShiftSummary, len(shifts))
	copy(sorted, shifts)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Date.Format(dateLayout), sorted[j].Date.Format(dateLayout)
		if di != dj {
			return di < dj
		}
		return sorted[i].Start < sorted[j].Start
	})

	lines := make([]string, 0, len(sorted))
	for _, s := range sorted {
		lines = append(lines, ShiftLine(s))
	}
	return strings.Join(lines, "\n")
}

// ShiftLine formats "<date> <start>-<end> (<dayName>)".
func ShiftLine(s models.ShiftSummary) string {
	return fmt.Sprintf("%s %s-%s (%s)", s.Date.Format(dateLayout), s.Start, s.End, s.DayName)
}
