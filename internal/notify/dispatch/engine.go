// Package dispatch runs one notification dispatch end to end: template
// lookup, recipient resolution, contact enrichment, rendering and delivery
// over SMS and email.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shift-notify/internal/common/aws"
	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/common/metrics"
	"shift-notify/internal/common/observability"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/recipients"
	"shift-notify/internal/notify/render"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

type TemplateStore interface {
	TemplateByID(ctx context.Context, id int64) (*models.Template, error)
}

type RecipientResolver interface {
	Resolve(ctx context.Context, shiftIDs []int64) (map[int64]*models.RecipientShifts, error)
	ResolveExplicit(ctx context.Context, recipientIDs, shiftIDs []int64) (map[int64]*models.RecipientShifts, error)
}

type ContactEnricher interface {
	Enrich(ctx context.Context, ids []int64) (map[int64]models.Recipient, error)
}

// SMSSender is satisfied by the rate-limited queue; Send blocks until the
// queued message has been handled.
type SMSSender interface {
	Send(ctx context.Context, phone, text string) error
}

type EmailSender interface {
	Send(ctx context.Context, address, subject, html string) error
}

// Dependencies wires the engine. SMS or Email may be left nil to disable that
// channel; recipients are then counted as skipped for it.
type Dependencies struct {
	Templates     TemplateStore
	Resolver      RecipientResolver
	Contacts      ContactEnricher
	SMS           SMSSender
	Email         EmailSender
	Observability *observability.Observability
}

type Engine struct {
	cfg       Config
	templates TemplateStore
	resolver  RecipientResolver
	contacts  ContactEnricher
	sms       SMSSender
	email     EmailSender
	limiter   *rate.Limiter
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewEngine(cfg Config, deps Dependencies, log logger.Logger) *Engine {
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = DefaultConfig().FailureRateThreshold
	}

	e := &Engine{
		cfg:       cfg,
		templates: deps.Templates,
		resolver:  deps.Resolver,
		contacts:  deps.Contacts,
		sms:       deps.SMS,
		email:     deps.Email,
		obs:       deps.Observability,
		logger:    log,
		now:       time.Now,
	}
	if cfg.EmailRatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.EmailRatePerSec), 1)
	}
	return e
}

// Dispatch executes a run synchronously. Per-recipient and per-send problems
// are counted on the returned Run; only template, store and context failures
// return an error, together with the partial Run.
func (e *Engine) Dispatch(ctx context.Context, req Request) (*Run, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	run := &Run{
		ID:         req.RunID,
		Trigger:    req.Trigger,
		TemplateID: req.TemplateID,
		WeekCode:   req.WeekCode,
		Channel:    req.Channel,
		StartedAt:  e.now(),
	}
	log := e.logger.WithFields(map[string]interface{}{
		"runId":      run.ID,
		"trigger":    string(run.Trigger),
		"templateId": run.TemplateID,
		"weekCode":   run.WeekCode,
	})

	ctx, span := e.obs.StartSpan(ctx, "dispatch.run",
		attribute.String("run.id", run.ID),
		attribute.String("run.trigger", string(run.Trigger)),
		attribute.Int64("template.id", run.TemplateID),
	)
	defer span.End()
	defer func() {
		run.FinishedAt = e.now()
		metrics.DispatchRuns.WithLabelValues(string(run.Trigger), string(run.Status)).Inc()
		e.obs.RecordRun(ctx, string(run.Channel), string(run.Status), run.FinishedAt.Sub(run.StartedAt), run.Counters.Recipients)
		if run.Status != RunCompleted {
			span.SetStatus(codes.Error, string(run.Status))
		}
	}()

	tmpl, err := e.templates.TemplateByID(ctx, req.TemplateID)
	if err != nil {
		return e.abort(log, run, err)
	}
	if run.Channel == "" {
		run.Channel = tmpl.Type
	}
	if !run.Channel.Valid() {
		return e.abort(log, run, apperrors.NewInvalidChannelError(string(run.Channel)))
	}
	log = log.WithFields(map[string]interface{}{"channel": string(run.Channel)})

	log.Info("Dispatch started", map[string]interface{}{
		"shiftIds":     len(req.ShiftIDs),
		"explicit":     req.RecipientIDs != nil,
		"recipientIds": len(req.RecipientIDs),
	})

	var set map[int64]*models.RecipientShifts
	if req.RecipientIDs != nil {
		set, err = e.resolver.ResolveExplicit(ctx, req.RecipientIDs, req.ShiftIDs)
	} else {
		set, err = e.resolver.Resolve(ctx, req.ShiftIDs)
	}
	if err != nil {
		return e.abort(log, run, err)
	}

	ids := recipients.SortedIDs(set)
	contacts, err := e.contacts.Enrich(ctx, ids)
	if err != nil {
		return e.abort(log, run, err)
	}
	span.SetAttributes(attribute.Int("run.recipients", len(ids)))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			run.Status = RunInterrupted
			log.Warn("Dispatch interrupted", map[string]interface{}{
				"error":     err.Error(),
				"processed": len(run.Outcomes),
				"remaining": len(ids) - len(run.Outcomes),
			})
			return run, err
		}
		contact, found := contacts[id]
		run.Outcomes = append(run.Outcomes, e.deliver(ctx, log, run, tmpl, set[id], contact, found))
	}

	e.checkFailureRates(log, run)
	run.Status = RunCompleted
	log.Info("Dispatch summary", run.Counters.fields())
	return run, nil
}

func (e *Engine) abort(log logger.Logger, run *Run, err error) (*Run, error) {
	run.Status = RunAborted
	log.Error("Dispatch aborted", map[string]interface{}{
		"fatal":     true,
		"error":     err.Error(),
		"errorCode": string(apperrors.CodeOf(err)),
	})
	return run, err
}

func (e *Engine) deliver(ctx context.Context, log logger.Logger, run *Run, tmpl *models.Template, rs *models.RecipientShifts, contact models.Recipient, found bool) Outcome {
	out := Outcome{
		RecipientID: rs.RecipientID,
		ShiftCount:  len(rs.Shifts),
		SMS:         StatusNotRequested,
		Email:       StatusNotRequested,
	}
	run.Counters.Recipients++
	if len(rs.Shifts) == 0 {
		run.Counters.WithoutShifts++
	}

	rlog := log.WithFields(map[string]interface{}{"recipientId": rs.RecipientID})

	if !found || !contact.Eligible() {
		run.Counters.SkippedInvalidState++
		metrics.NotificationsSkipped.WithLabelValues("invalid_state").Inc()
		rlog.Warn("Recipient skipped: not an active employee", map[string]interface{}{
			"exists": found,
			"role":   contact.Role,
			"status": contact.Status,
		})
		if run.Channel.IncludesSMS() {
			out.SMS = StatusSkippedInvalid
		}
		if run.Channel.IncludesEmail() {
			out.Email = StatusSkippedInvalid
		}
		return out
	}

	name := rs.Name
	if name == "" {
		name = contact.DisplayName
	}
	msg := render.Render(*tmpl, rs.RecipientID, name, rs.Shifts)

	rlog.Info("Processing recipient", map[string]interface{}{
		"shifts":   len(rs.Shifts),
		"hasPhone": contact.Phone != "",
		"hasEmail": contact.Email != "",
	})

	if run.Channel.IncludesSMS() {
		out.SMS, out.SMSError = e.sendSMS(ctx, rlog, run, contact, msg)
	}
	if run.Channel.IncludesEmail() {
		out.Email, out.EmailError = e.sendEmail(ctx, rlog, run, contact, msg)
	}
	return out
}

func (e *Engine) sendSMS(ctx context.Context, log logger.Logger, run *Run, contact models.Recipient, msg render.Message) (OutcomeStatus, string) {
	if e.sms == nil {
		run.Counters.SkippedChannelUnavailable++
		metrics.NotificationsSkipped.WithLabelValues("sms_unavailable").Inc()
		log.Warn("SMS skipped: channel not configured", nil)
		return StatusSkippedUnavailable, ""
	}

	phone := NormalizePhone(contact.Phone, e.cfg.DefaultCountryCode)
	if phone == "" {
		run.Counters.SkippedNoPhone++
		metrics.NotificationsSkipped.WithLabelValues("no_phone").Inc()
		log.Warn("SMS skipped: no phone number", nil)
		return StatusSkippedNoPhone, ""
	}
	if !contact.Preferences.AllowsSMS() {
		run.Counters.SkippedSMSDisabled++
		metrics.NotificationsSkipped.WithLabelValues("sms_disabled").Inc()
		log.Info("SMS skipped: disabled by preference", map[string]interface{}{
			"phone":         logger.MaskPhone(phone),
			"globalOptOut":  !contact.Preferences.GloballyEnabled,
			"channelOptOut": !contact.Preferences.SMSEnabled,
		})
		return StatusSkippedPreference, ""
	}

	start := time.Now()
	err := e.sms.Send(ctx, phone, msg.Text)
	metrics.SendDuration.WithLabelValues("sms").Observe(time.Since(start).Seconds())
	if err != nil {
		run.Counters.SMSFailed++
		code := failureCode(err, apperrors.ErrCodeSMSSendFailed)
		metrics.NotificationsFailed.WithLabelValues("sms", string(code)).Inc()
		log.Error("SMS send failed", failureFields(err, code, "phone", logger.MaskPhone(phone), phone, contact.Phone))
		return StatusFailed, logger.RedactContacts(err.Error(), phone, contact.Phone)
	}

	run.Counters.SMSSent++
	metrics.NotificationsSent.WithLabelValues("sms").Inc()
	log.Info("SMS sent", map[string]interface{}{"phone": logger.MaskPhone(phone)})
	return StatusSent, ""
}

func (e *Engine) sendEmail(ctx context.Context, log logger.Logger, run *Run, contact models.Recipient, msg render.Message) (OutcomeStatus, string) {
	if e.email == nil {
		run.Counters.SkippedChannelUnavailable++
		metrics.NotificationsSkipped.WithLabelValues("email_unavailable").Inc()
		log.Warn("Email skipped: channel not configured", nil)
		return StatusSkippedUnavailable, ""
	}

	if contact.Email == "" {
		run.Counters.SkippedNoEmail++
		metrics.NotificationsSkipped.WithLabelValues("no_email").Inc()
		log.Warn("Email skipped: no email address", nil)
		return StatusSkippedNoEmail, ""
	}
	masked := logger.MaskEmail(contact.Email)
	if !contact.Preferences.AllowsEmail() {
		run.Counters.SkippedEmailDisabled++
		metrics.NotificationsSkipped.WithLabelValues("email_disabled").Inc()
		log.Info("Email skipped: disabled by preference", map[string]interface{}{
			"email":         masked,
			"globalOptOut":  !contact.Preferences.GloballyEnabled,
			"channelOptOut": !contact.Preferences.EmailEnabled,
		})
		return StatusSkippedPreference, ""
	}

	start := time.Now()
	err := e.sendEmailBounded(ctx, contact.Email, msg)
	metrics.SendDuration.WithLabelValues("email").Observe(time.Since(start).Seconds())
	if err != nil {
		run.Counters.EmailFailed++
		code := failureCode(err, apperrors.ErrCodeEmailSendFailed)
		metrics.NotificationsFailed.WithLabelValues("email", string(code)).Inc()
		log.Error("Email send failed", failureFields(err, code, "email", masked, contact.Email))
		return StatusFailed, logger.RedactContacts(err.Error(), contact.Email)
	}

	run.Counters.EmailSent++
	metrics.NotificationsSent.WithLabelValues("email").Inc()
	log.Info("Email sent", map[string]interface{}{"email": masked})
	return StatusSent, ""
}

func (e *Engine) sendEmailBounded(ctx context.Context, address string, msg render.Message) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	sendCtx := ctx
	if e.cfg.EmailTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, e.cfg.EmailTimeout)
		defer cancel()
	}

	err := e.email.Send(sendCtx, address, msg.Subject, msg.EmailHTML)
	if err != nil && errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", apperrors.NewSendTimeoutError("email", e.cfg.EmailTimeout), err)
	}
	return err
}

func (e *Engine) checkFailureRates(log logger.Logger, run *Run) {
	check := func(channel string, sent, failed int) {
		if sent+failed == 0 {
			return
		}
		rate := failureRate(sent, failed)
		if rate >= e.cfg.FailureRateThreshold {
			log.Warn("High channel failure rate", map[string]interface{}{
				"channel":     channel,
				"failureRate": rate,
				"failed":      failed,
				"attempted":   sent + failed,
				"threshold":   e.cfg.FailureRateThreshold,
			})
		}
	}
	check("sms", run.Counters.SMSSent, run.Counters.SMSFailed)
	check("email", run.Counters.EmailSent, run.Counters.EmailFailed)
}

func failureCode(err error, fallback apperrors.ErrorCode) apperrors.ErrorCode {
	if stdErr, ok := apperrors.AsStandard(err); ok {
		return stdErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrCodeSendTimeout
	}
	return fallback
}

// failureFields describes a provider error for logging. Provider messages may
// echo the address, so the raw contact values are masked out of them.
func failureFields(err error, code apperrors.ErrorCode, contactKey, maskedContact string, raw ...string) map[string]interface{} {
	fields := map[string]interface{}{
		contactKey:  maskedContact,
		"errorCode": string(code),
	}
	for k, v := range aws.DescribeError(err) {
		if text, ok := v.(string); ok {
			v = logger.RedactContacts(text, raw...)
		}
		fields["provider_"+k] = v
	}
	return fields
}
