package postgres

import (
	"context"
	"database/sql"
	"errors"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"
)

// TemplateByID returns a TEMPLATE_NOT_FOUND error when no row matches.
func (s *Store) TemplateByID(ctx context.Context, id int64) (*models.Template, error) {
	var (
		t    models.Template
		kind string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, type, COALESCE(subject, ''), COALESCE(body, ''),
       COALESCE(opening_text, ''), COALESCE(ending_text, '')
FROM templates
WHERE id = $1`, id).Scan(&t.ID, &kind, &t.Subject, &t.Body, &t.OpeningText, &t.EndingText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewTemplateNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("template_by_id", err)
	}

	channel, ok := models.ParseChannel(kind)
	if !ok {
		return nil, apperrors.NewTemplateInvalidTypeError(id, kind)
	}
	t.Type = channel
	return &t, nil
}
