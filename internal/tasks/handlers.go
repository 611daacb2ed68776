package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/pkg/queue"
	"golang.org/x/oauth2"
)

const (
	invitationMaxRetry = 5
	invitationTimeout  = time.Minute
)

// Sealer protects the OAuth token inside a job payload.
type Sealer interface {
	Seal(v any) (string, error)
	Open(sealed string, v any) error
}

// Mailer delivers invitation emails. *google.Factory implements it.
type Mailer interface {
	SendInvitation(ctx context.Context, tok *oauth2.Token, msg google.InvitationEmail) error
}

// Enqueuer hands invitation emails to the worker instead of sending them
// during the request.
type Enqueuer struct {
	client *asynq.Client
	sealer Sealer
	logger *slog.Logger
}

func NewEnqueuer(client *asynq.Client, sealer Sealer, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, sealer: sealer, logger: logger}
}

func (e *Enqueuer) SendInvitation(ctx context.Context, tok *oauth2.Token, msg google.InvitationEmail) error {
	task, err := e.invitationTask("", tok, msg)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(invitationMaxRetry),
		asynq.Timeout(invitationTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueueing invitation email: %w", err)
	}
	e.logger.Info("invitation email queued", "task_id", info.ID, "to", msg.To)
	return nil
}

func (e *Enqueuer) invitationTask(invitationID string, tok *oauth2.Token, msg google.InvitationEmail) (*asynq.Task, error) {
	sealed, err := e.sealer.Seal(tok)
	if err != nil {
		return nil, fmt.Errorf("sealing token: %w", err)
	}
	return NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: invitationID,
		Message:      msg,
		SealedToken:  sealed,
	})
}

type Handler struct {
	mailer Mailer
	sealer Sealer
	logger *slog.Logger
}

func NewHandler(mailer Mailer, sealer Sealer, logger *slog.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		sealer: sealer,
		logger: logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitationEmail, h.HandleInvitationEmail)
}

func (h *Handler) HandleInvitationEmail(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	var tok oauth2.Token
	if err := h.sealer.Open(payload.SealedToken, &tok); err != nil {
		return fmt.Errorf("opening token: %v: %w", err, asynq.SkipRetry)
	}
	if !tok.Valid() {
		h.logger.Warn("dropping invitation email, token expired", "to", payload.Message.To)
		return fmt.Errorf("token expired: %w", asynq.SkipRetry)
	}

	if err := h.mailer.SendInvitation(ctx, &tok, payload.Message); err != nil {
		h.logger.Error("invitation email failed", "to", payload.Message.To, "error", err)
		if errors.Is(err, apperr.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("invitation email delivered", "to", payload.Message.To)
	return nil
}
