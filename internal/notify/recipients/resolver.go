// Package recipients builds the per-recipient view of a dispatch: who gets a
// message, which shifts they see and how they can be reached.
package recipients

import (
	"context"
	"sort"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/models"
)

// ShiftSource reads shift rows and the active employee population.
type ShiftSource interface {
	ShiftsByIDs(ctx context.Context, ids []int64) ([]models.ShiftRow, error)
	ActiveEmployees(ctx context.Context) ([]models.RecipientRef, error)
}

// Resolver groups shift rows by recipient.
type Resolver struct {
	source ShiftSource
	logger logger.Logger
}

func NewResolver(source ShiftSource, log logger.Logger) *Resolver {
	return &Resolver{source: source, logger: log}
}

// Resolve returns one entry per recipient with shifts among shiftIDs, plus
// one entry with no shifts for every other active employee. Ids that match
// no rows are ignored; the active employee union always runs.
func (r *Resolver) Resolve(ctx context.Context, shiftIDs []int64) (map[int64]*models.RecipientShifts, error) {
	out, err := r.groupShifts(ctx, shiftIDs, nil)
	if err != nil {
		return nil, err
	}
	withShifts := len(out)

	employees, err := r.source.ActiveEmployees(ctx)
	if err != nil {
		return nil, apperrors.NewRecipientResolutionFailedError(err)
	}
	for _, e := range employees {
		if _, ok := out[e.ID]; ok {
			continue
		}
		out[e.ID] = &models.RecipientShifts{RecipientID: e.ID, Name: e.Name}
	}

	r.logger.Debug("Recipients resolved", map[string]interface{}{
		"shiftIds":          len(shiftIDs),
		"recipients":        len(out),
		"recipientsShifted": withShifts,
	})
	return out, nil
}

// ResolveExplicit returns exactly the listed recipients, each carrying the
// shifts among shiftIDs assigned to them.
func (r *Resolver) ResolveExplicit(ctx context.Context, recipientIDs, shiftIDs []int64) (map[int64]*models.RecipientShifts, error) {
	wanted := make(map[int64]bool, len(recipientIDs))
	for _, id := range recipientIDs {
		wanted[id] = true
	}

	out, err := r.groupShifts(ctx, shiftIDs, wanted)
	if err != nil {
		return nil, err
	}
	for id := range wanted {
		if _, ok := out[id]; !ok {
			out[id] = &models.RecipientShifts{RecipientID: id}
		}
	}
	return out, nil
}

func (r *Resolver) groupShifts(ctx context.Context, shiftIDs []int64, only map[int64]bool) (map[int64]*models.RecipientShifts, error) {
	out := make(map[int64]*models.RecipientShifts)
	if len(shiftIDs) == 0 {
		return out, nil
	}

	rows, err := r.source.ShiftsByIDs(ctx, shiftIDs)
	if err != nil {
		return nil, apperrors.NewRecipientResolutionFailedError(err)
	}
	if len(rows) == 0 {
		r.logger.Warn("No shifts matched the requested ids", map[string]interface{}{
			"shiftIds": len(shiftIDs),
		})
	}

	for _, row := range rows {
		if only != nil && !only[row.RecipientID] {
			continue
		}
		entry, ok := out[row.RecipientID]
		if !ok {
			entry = &models.RecipientShifts{RecipientID: row.RecipientID}
			out[row.RecipientID] = entry
		}
		if entry.Name == "" {
			entry.Name = row.RecipientName
		}
		entry.Shifts = append(entry.Shifts, row.Summary())
	}
	return out, nil
}

// SortedIDs returns the keys of a resolved set in ascending order.
func SortedIDs(set map[int64]*models.RecipientShifts) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
