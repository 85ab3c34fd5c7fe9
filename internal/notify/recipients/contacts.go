package recipients

import (
	"context"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/models"
)

// ContactSource loads contacts and preferences in one batch.
type ContactSource interface {
	ContactsByIDs(ctx context.Context, ids []int64, cols models.PreferenceColumns) ([]models.Recipient, error)
}

// ContactResolver enriches recipient ids with contact data. The preference
// columns are resolved once at startup and never re-probed.
type ContactResolver struct {
	source  ContactSource
	columns models.PreferenceColumns
	logger  logger.Logger
}

func NewContactResolver(source ContactSource, columns models.PreferenceColumns, log logger.Logger) *ContactResolver {
	return &ContactResolver{source: source, columns: columns, logger: log}
}

// Columns returns the preference columns in use.
func (c *ContactResolver) Columns() models.PreferenceColumns {
	return c.columns
}

// Enrich returns the current record of every id that still exists. Role and
// status are re-read here, so callers must check Recipient.Eligible before
// sending; ids missing from the result no longer exist.
func (c *ContactResolver) Enrich(ctx context.Context, ids []int64) (map[int64]models.Recipient, error) {
	out := make(map[int64]models.Recipient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	list, err := c.source.ContactsByIDs(ctx, ids, c.columns)
	if err != nil {
		return nil, apperrors.NewContactLookupFailedError(err)
	}

	ineligible := 0
	for _, r := range list {
		if !r.Eligible() {
			ineligible++
		}
		out[r.ID] = r
	}

	c.logger.Debug("Contacts enriched", map[string]interface{}{
		"requested":  len(ids),
		"loaded":     len(out),
		"ineligible": ineligible,
	})
	return out, nil
}
