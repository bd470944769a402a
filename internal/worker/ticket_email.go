// Package worker retries failed ticket email deliveries out of band. The
// server enqueues a job when the inline send after payment confirmation
// fails; this processor re-reads the registration, re-encodes the ticket and
// sends again, with DLQ semantics from pkg/queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emberfest/backend/internal/models"
	"github.com/emberfest/backend/internal/notify"
	"github.com/emberfest/backend/internal/registrations"
	"github.com/emberfest/backend/internal/tickets"
	"github.com/emberfest/backend/pkg/queue"
)

// TicketEmailProcessor processes ticket email retry jobs.
type TicketEmailProcessor struct {
	store     registrations.Store
	notifier  notify.Notifier
	queue     *queue.Queue
	notifLog  registrations.NotificationRecorder
	eventName string
	logger    *zap.Logger
}

// NewTicketEmailProcessor creates a ticket email retry processor. notifLog
// may be nil.
func NewTicketEmailProcessor(store registrations.Store, notifier notify.Notifier, q *queue.Queue, notifLog registrations.NotificationRecorder, eventName string, logger *zap.Logger) *TicketEmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketEmailProcessor{store: store, notifier: notifier, queue: q, notifLog: notifLog, eventName: eventName, logger: logger}
}

// Process executes one ticket email job. A missing registration is dropped,
// not retried: the record is the source of truth and without it there is no
// valid ticket to send.
func (p *TicketEmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTicketEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TicketEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.store.GetByID(ctx, payload.RegistrationID)
	if err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			p.logger.Warn("dropping ticket job for unknown registration", zap.String("registration_id", payload.RegistrationID.String()))
			return nil
		}
		return fmt.Errorf("get registration: %w", err)
	}

	png, err := tickets.Encode(reg.ID.String())
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}

	err = p.notifier.SendTicket(ctx, notify.TicketEmail{
		To:             reg.Email,
		FullName:       reg.FullName,
		EventName:      p.eventName,
		RegistrationID: reg.ID.String(),
		TicketPNG:      png,
	})
	p.record(ctx, reg, err)
	if err != nil {
		return fmt.Errorf("send ticket: %w", err)
	}

	p.logger.Info("ticket email delivered", zap.String("registration_id", reg.ID.String()), zap.Int("attempt", job.Attempt))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TicketEmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ticket email worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

func (p *TicketEmailProcessor) record(ctx context.Context, reg *models.Registration, cause error) {
	if p.notifLog == nil {
		return
	}
	entry := &models.NotificationLog{
		RegistrationID: reg.ID,
		Recipient:      reg.Email,
		Kind:           models.NotificationKindTicketRetry,
		Status:         models.NotificationStatusSent,
	}
	if cause != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = cause.Error()
	}
	if err := p.notifLog.Record(ctx, entry); err != nil {
		p.logger.Error("record notification failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
	}
}
