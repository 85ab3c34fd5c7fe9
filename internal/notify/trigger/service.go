// Package trigger accepts dispatch requests from the HTTP API, the workflow
// worker and the CLI. It validates synchronously, acknowledges with a run id
// and lets the dispatch run in the background.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"

	"github.com/google/uuid"
)

type Store interface {
	TemplateByID(ctx context.Context, id int64) (*models.Template, error)
	ShiftIDsForWeek(ctx context.Context, weekCode string) ([]int64, error)
	PublishWeek(ctx context.Context, weekCode string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Run, error)
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	dedup      Deduper
	logger     logger.Logger
	now        func() time.Time
	wg         sync.WaitGroup
}

// NewService builds a trigger service. dedup may be nil.
func NewService(store Store, dispatcher Dispatcher, dedup Deduper, log logger.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		dedup:      dedup,
		logger:     log,
		now:        time.Now,
	}
}

// PublishWeek marks the week as published and notifies everyone about it.
func (s *Service) PublishWeek(ctx context.Context, req WeekRequest) (*Ack, error) {
	if req.Trigger == "" {
		req.Trigger = dispatch.TriggerPublish
	}
	if err := s.precheck(ctx, req.validate(), req.TemplateID); err != nil {
		return nil, err
	}
	key, err := s.acquire(ctx, req.dedupKey())
	if err != nil {
		return nil, err
	}
	if err := s.store.PublishWeek(ctx, req.WeekCode); err != nil {
		s.release(key)
		return nil, err
	}
	s.logger.Info("Week published", map[string]interface{}{"weekCode": req.WeekCode})

	return s.start(req.Trigger, req.TemplateID, req.Channel, req.WeekCode, nil), nil
}

// NotifyWeek sends the template to everyone with shifts in the week and to
// all active employees.
func (s *Service) NotifyWeek(ctx context.Context, req WeekRequest) (*Ack, error) {
	if req.Trigger == "" {
		req.Trigger = dispatch.TriggerManual
	}
	if err := s.precheck(ctx, req.validate(), req.TemplateID); err != nil {
		return nil, err
	}
	if _, err := s.acquire(ctx, req.dedupKey()); err != nil {
		return nil, err
	}
	return s.start(req.Trigger, req.TemplateID, req.Channel, req.WeekCode, nil), nil
}

// NotifyRecipients sends the template to exactly the listed recipients.
func (s *Service) NotifyRecipients(ctx context.Context, req RecipientsRequest) (*Ack, error) {
	if req.Trigger == "" {
		req.Trigger = dispatch.TriggerManual
	}
	if err := s.precheck(ctx, req.validate(), req.TemplateID); err != nil {
		return nil, err
	}
	if _, err := s.acquire(ctx, req.dedupKey()); err != nil {
		return nil, err
	}
	ids := append([]int64(nil), req.RecipientIDs...)
	return s.start(req.Trigger, req.TemplateID, req.Channel, req.WeekCode, ids), nil
}

// RunWeek dispatches synchronously and returns the finished run.
func (s *Service) RunWeek(ctx context.Context, req WeekRequest) (*dispatch.Run, error) {
	if req.Trigger == "" {
		req.Trigger = dispatch.TriggerCLI
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	shiftIDs, err := s.store.ShiftIDsForWeek(ctx, req.WeekCode)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Dispatch(ctx, dispatch.Request{
		RunID:      uuid.NewString(),
		Trigger:    req.Trigger,
		TemplateID: req.TemplateID,
		Channel:    req.Channel,
		ShiftIDs:   shiftIDs,
		WeekCode:   req.WeekCode,
	})
}

// Wait blocks until every accepted run has finished or ctx expires.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) precheck(ctx context.Context, validationErr error, templateID int64) error {
	if validationErr != nil {
		return validationErr
	}
	if _, err := s.store.TemplateByID(ctx, templateID); err != nil {
		return err
	}
	return nil
}

// acquire returns the held key, or "" when deduplication is off or Redis is
// unreachable. A Redis outage never blocks a trigger.
func (s *Service) acquire(ctx context.Context, key string) (string, error) {
	if s.dedup == nil {
		return "", nil
	}
	ok, err := s.dedup.Acquire(ctx, key)
	if err != nil {
		s.logger.Warn("Dedup check unavailable, continuing", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return "", nil
	}
	if !ok {
		return "", apperrors.NewDuplicateDispatchError(key)
	}
	return key, nil
}

func (s *Service) release(key string) {
	if s.dedup == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.dedup.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release dedup key", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (s *Service) start(trig dispatch.Trigger, templateID int64, channel models.Channel, weekCode string, recipientIDs []int64) *Ack {
	ack := &Ack{
		RunID:      uuid.NewString(),
		Status:     StatusAccepted,
		Trigger:    trig,
		AcceptedAt: s.now(),
	}
	log := s.logger.WithFields(map[string]interface{}{
		"runId":      ack.RunID,
		"trigger":    string(trig),
		"templateId": templateID,
		"weekCode":   weekCode,
	})
	log.Info("Dispatch accepted", nil)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Background dispatch panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			}
		}()

		ctx := context.Background()
		var shiftIDs []int64
		if weekCode != "" {
			ids, err := s.store.ShiftIDsForWeek(ctx, weekCode)
			if err != nil {
				log.Error("Failed to load week shifts", map[string]interface{}{
					"error":     err.Error(),
					"errorCode": string(apperrors.CodeOf(err)),
				})
				return
			}
			shiftIDs = ids
		}

		if _, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
			RunID:        ack.RunID,
			Trigger:      trig,
			TemplateID:   templateID,
			Channel:      channel,
			ShiftIDs:     shiftIDs,
			RecipientIDs: recipientIDs,
			WeekCode:     weekCode,
		}); err != nil {
			log.Error("Background dispatch failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	return ack
}
