package mail

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

const (
	colOutbox     = "email_outbox"
	colOutboxBulk = "email_outbox_bulk"
)

// ProgramMeta is the denormalized program snapshot kept on single-send
// records so the outbox is auditable after a program changes or disappears.
type ProgramMeta struct {
	Name       string `firestore:"name"`
	Location   string `firestore:"location"`
	Schedule   string `firestore:"schedule"`
	Difficulty string `firestore:"difficulty"`
}

// SingleRecord describes one brochure-send attempt.
type SingleRecord struct {
	To          string
	Subject     string
	ProgramID   string
	ProgramMeta ProgramMeta
	TemplateID  string
	InitiatedBy string
}

// BulkRecord describes one bulk broadcast.
type BulkRecord struct {
	Subject         string
	By              string
	Email           string
	TotalRecipients int
	Batches         int
}

// Outbox is the durable send log. Every attempt gets exactly one initial
// insert and exactly one terminal status update.
type Outbox interface {
	LogQueued(ctx context.Context, rec SingleRecord) (string, error)
	MarkSent(ctx context.Context, id, providerMessageID string) error
	MarkFailed(ctx context.Context, id, detail string, sgErrors []string) error

	LogBulkSending(ctx context.Context, rec BulkRecord) (string, error)
	MarkBulkCompleted(ctx context.Context, id string, sent int) error
}

// FirestoreOutbox keeps send logs in the email_outbox and email_outbox_bulk
// collections.
type FirestoreOutbox struct {
	fs *firestore.Client
}

func NewFirestoreOutbox(fs *firestore.Client) *FirestoreOutbox {
	return &FirestoreOutbox{fs: fs}
}

func (o *FirestoreOutbox) LogQueued(ctx context.Context, rec SingleRecord) (string, error) {
	id := uuid.New().String()

	var programID any
	if rec.ProgramID != "" {
		programID = rec.ProgramID
	}
	var templateID any
	if rec.TemplateID != "" {
		templateID = rec.TemplateID
	}

	_, err := o.fs.Collection(colOutbox).Doc(id).Create(ctx, map[string]any{
		"to":        rec.To,
		"subject":   rec.Subject,
		"programId": programID,
		"programMeta": map[string]any{
			"name":       rec.ProgramMeta.Name,
			"location":   rec.ProgramMeta.Location,
			"schedule":   rec.ProgramMeta.Schedule,
			"difficulty": rec.ProgramMeta.Difficulty,
		},
		"templateId":  templateID,
		"status":      "queued",
		"initiatedBy": rec.InitiatedBy,
		"createdAt":   firestore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("log queued email: %w", err)
	}
	return id, nil
}

func (o *FirestoreOutbox) MarkSent(ctx context.Context, id, providerMessageID string) error {
	_, err := o.fs.Collection(colOutbox).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: "sent"},
		{Path: "sgMessageId", Value: providerMessageID},
		{Path: "sentAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}

func (o *FirestoreOutbox) MarkFailed(ctx context.Context, id, detail string, sgErrors []string) error {
	var provider any
	if len(sgErrors) > 0 {
		provider = sgErrors
	}

	_, err := o.fs.Collection(colOutbox).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: "failed"},
		{Path: "error", Value: detail},
		{Path: "sgErrors", Value: provider},
		{Path: "failedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("mark email failed: %w", err)
	}
	return nil
}

func (o *FirestoreOutbox) LogBulkSending(ctx context.Context, rec BulkRecord) (string, error) {
	id := uuid.New().String()

	_, err := o.fs.Collection(colOutboxBulk).Doc(id).Create(ctx, map[string]any{
		"subject":         rec.Subject,
		"by":              rec.By,
		"email":           rec.Email,
		"totalRecipients": rec.TotalRecipients,
		"batches":         rec.Batches,
		"status":          "sending",
		"createdAt":       firestore.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("log bulk send: %w", err)
	}
	return id, nil
}

func (o *FirestoreOutbox) MarkBulkCompleted(ctx context.Context, id string, sent int) error {
	_, err := o.fs.Collection(colOutboxBulk).Doc(id).Update(ctx, []firestore.Update{
		{Path: "sent", Value: sent},
		{Path: "status", Value: "completed"},
		{Path: "finishedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		return fmt.Errorf("mark bulk completed: %w", err)
	}
	return nil
}
