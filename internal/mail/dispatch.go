package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/walking-football-hub/wfh-backend/config"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

var (
	ErrNotConfigured    = errors.New("missing SENDGRID_KEY or MAIL_FROM env var")
	ErrInvalidRecipient = errors.New("invalid recipient email")
	ErrNoRecipients     = errors.New("provide at least one recipient in 'to'")
	ErrMissingContent   = errors.New("subject and text are required")
)

// SendError carries the provider failure detail after the outbox record has
// already been marked failed. SGErrors holds the messages from the provider's
// error body, when it sent one.
type SendError struct {
	OutboxID string
	Detail   string
	SGErrors []string
}

func (e *SendError) Error() string { return e.Detail }

// ProgramLookup is the slice of the program repository the dispatcher needs.
type ProgramLookup interface {
	Get(ctx context.Context, id string) (*programs.Program, error)
}

// Dispatcher sends brochure and bulk emails through the provider, recording
// every attempt in the outbox. Failed sends are durable and auditable; no
// automatic retry happens.
type Dispatcher struct {
	cfg      config.MailConfig
	sender   Sender
	outbox   Outbox
	programs ProgramLookup
}

func NewDispatcher(cfg config.MailConfig, sender Sender, outbox Outbox, lookup ProgramLookup) *Dispatcher {
	return &Dispatcher{cfg: cfg, sender: sender, outbox: outbox, programs: lookup}
}

// Configured reports whether the provider settings required for any send are
// present.
func (d *Dispatcher) Configured() error {
	if d.cfg.SendGridKey == "" || d.cfg.FromEmail == "" {
		return ErrNotConfigured
	}
	return nil
}

// BrochureRequest is the single-send input. Program resolution order:
// ProgramID from the store, then the inline payload, then a fixed default
// community-session description.
type BrochureRequest struct {
	To          string
	Subject     string
	ProgramID   string
	Program     *programs.ProgramInput
	MessageHTML string
}

type BrochureResult struct {
	OutboxID    string
	SGMessageID string
}

// SendProgramBrochure renders the PDF brochure, logs a queued outbox record,
// sends, and moves the record to exactly one terminal status.
func (d *Dispatcher) SendProgramBrochure(ctx context.Context, req BrochureRequest, initiatedBy string) (*BrochureResult, error) {
	if err := d.Configured(); err != nil {
		return nil, err
	}
	if !IsEmail(req.To) {
		return nil, ErrInvalidRecipient
	}

	program, err := d.resolveProgram(ctx, req)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := BuildProgramPDF(program)
	if err != nil {
		return nil, err
	}

	subject := req.Subject
	if subject == "" {
		subject = "Your Walking Football Program Brochure"
	}

	msg := d.buildBrochureMessage(req.To, subject, program, req.MessageHTML, req.ProgramID, pdfBytes)

	outboxID, err := d.outbox.LogQueued(ctx, SingleRecord{
		To:        req.To,
		Subject:   subject,
		ProgramID: req.ProgramID,
		ProgramMeta: ProgramMeta{
			Name:       program.Name,
			Location:   program.Location,
			Schedule:   program.Schedule,
			Difficulty: program.Difficulty,
		},
		TemplateID:  d.cfg.ProgramTemplateID,
		InitiatedBy: initiatedBy,
	})
	if err != nil {
		return nil, err
	}

	resp, err := d.sender.Send(ctx, msg)
	if err != nil || (resp != nil && resp.StatusCode >= 400) {
		detail := "provider rejected the message"
		var sgErrors []string
		if err != nil {
			detail = err.Error()
		} else if resp != nil {
			detail = fmt.Sprintf("provider status %d", resp.StatusCode)
			sgErrors = providerErrors(resp.Body)
		}
		log.Printf("[mail] send failed: %s %v", detail, sgErrors)
		if markErr := d.outbox.MarkFailed(ctx, outboxID, detail, sgErrors); markErr != nil {
			log.Printf("[mail] outbox %s not marked failed: %v", outboxID, markErr)
		}
		return nil, &SendError{OutboxID: outboxID, Detail: detail, SGErrors: sgErrors}
	}

	sgMessageID := messageID(resp)
	if err := d.outbox.MarkSent(ctx, outboxID, sgMessageID); err != nil {
		log.Printf("[mail] outbox %s not marked sent: %v", outboxID, err)
	}

	return &BrochureResult{OutboxID: outboxID, SGMessageID: sgMessageID}, nil
}

// providerErrors pulls the message strings out of a SendGrid error body,
// shaped {"errors":[{"message": "...", ...}, ...]}.
func providerErrors(body string) []string {
	var parsed struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil
	}

	out := make([]string, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		if e.Message != "" {
			out = append(out, e.Message)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (d *Dispatcher) resolveProgram(ctx context.Context, req BrochureRequest) (programs.Program, error) {
	if req.ProgramID != "" {
		p, err := d.programs.Get(ctx, req.ProgramID)
		if err != nil {
			return programs.Program{}, err
		}
		return *p, nil
	}
	if req.Program != nil {
		return programs.NewProgram(*req.Program), nil
	}
	return defaultProgram(), nil
}

func defaultProgram() programs.Program {
	return programs.Program{
		Name:        "Walking Football – Community Session",
		Location:    "Melbourne",
		Schedule:    "Fridays 11:00–12:30",
		Difficulty:  "Beginner",
		Description: "Inclusive, low-impact football. All fitness levels welcome.",
	}
}

func (d *Dispatcher) buildBrochureMessage(to, subject string, p programs.Program, messageHTML, programID string, pdfBytes []byte) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(d.cfg.FromName, d.cfg.FromEmail))
	m.Subject = subject
	m.AddCategories("program_brochure")

	personalization := sgmail.NewPersonalization()
	personalization.AddTos(sgmail.NewEmail("", to))

	if programID == "" {
		programID = "na"
	}
	personalization.SetCustomArg("programId", programID)

	if d.cfg.ProgramTemplateID != "" {
		m.SetTemplateID(d.cfg.ProgramTemplateID)
		personalization.SetDynamicTemplateData("programName", p.Name)
		personalization.SetDynamicTemplateData("location", p.Location)
		personalization.SetDynamicTemplateData("schedule", p.Schedule)
		personalization.SetDynamicTemplateData("difficulty", p.Difficulty)
		personalization.SetDynamicTemplateData("messageHtml", messageHTML)
	} else {
		m.AddContent(sgmail.NewContent("text/html", brochureHTML(p, messageHTML)))
	}

	m.AddPersonalizations(personalization)

	attachment := sgmail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString(pdfBytes))
	attachment.SetType("application/pdf")
	attachment.SetFilename(BrochureFilename)
	attachment.SetDisposition("attachment")
	m.AddAttachment(attachment)

	return m
}

func brochureHTML(p programs.Program, messageHTML string) string {
	return fmt.Sprintf(`<p>Hi,</p>
%s
<p>Find attached the brochure for <strong>%s</strong>.</p>
<p>Location: %s<br/>
   Schedule: %s<br/>
   Difficulty: %s</p>
<p>Thanks,<br/>Walking Football Hub</p>`,
		messageHTML, p.Name, p.Location, p.Schedule, p.Difficulty)
}

// BulkRequest is the broadcast input after recipient parsing.
type BulkRequest struct {
	Recipients []string
	Subject    string
	Text       string
	BatchSize  int
}

// SendBulk partitions recipients into provider-sized batches and sends them
// sequentially. A failed batch is logged and excluded from the delivered
// count but does not stop later batches. Returns delivered and attempted
// totals.
func (d *Dispatcher) SendBulk(ctx context.Context, req BulkRequest, byUID, byEmail string) (sent, total int, err error) {
	if cfgErr := d.Configured(); cfgErr != nil {
		return 0, 0, cfgErr
	}
	if len(req.Recipients) == 0 {
		return 0, 0, ErrNoRecipients
	}
	if req.Subject == "" || req.Text == "" {
		return 0, 0, ErrMissingContent
	}

	batchSize := ClampBatchSize(req.BatchSize)
	batches := ChunkRecipients(req.Recipients, batchSize)
	total = len(req.Recipients)

	logID, err := d.outbox.LogBulkSending(ctx, BulkRecord{
		Subject:         req.Subject,
		By:              byUID,
		Email:           byEmail,
		TotalRecipients: total,
		Batches:         len(batches),
	})
	if err != nil {
		return 0, 0, err
	}

	for i, batch := range batches {
		msg := d.buildBulkMessage(req.Subject, req.Text, batch, logID, i)

		resp, sendErr := d.sender.Send(ctx, msg)
		if sendErr != nil || (resp != nil && resp.StatusCode >= 400) {
			if sendErr == nil {
				sendErr = fmt.Errorf("provider status %d", resp.StatusCode)
			}
			log.Printf("[mail] bulk %s batch %d/%d failed: %v", logID, i+1, len(batches), sendErr)
			continue
		}
		sent += len(batch)
	}

	if err := d.outbox.MarkBulkCompleted(ctx, logID, sent); err != nil {
		log.Printf("[mail] bulk %s not marked completed: %v", logID, err)
	}

	return sent, total, nil
}

func (d *Dispatcher) buildBulkMessage(subject, text string, batch []string, logID string, batchIndex int) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(d.cfg.FromName, d.cfg.FromEmail))
	m.Subject = subject
	m.AddContent(sgmail.NewContent("text/plain", text))
	m.AddCategories("bulk_email")

	for _, addr := range batch {
		personalization := sgmail.NewPersonalization()
		personalization.AddTos(sgmail.NewEmail("", addr))
		personalization.SetCustomArg("bulkLogId", logID)
		personalization.SetCustomArg("batchIndex", fmt.Sprintf("%d", batchIndex))
		m.AddPersonalizations(personalization)
	}

	return m
}
