package mail

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walking-football-hub/wfh-backend/config"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

type fakeSender struct {
	sent []*sgmail.SGMailV3
	// send decides the response per call; defaults to 202 accepted.
	send func(call int, m *sgmail.SGMailV3) (*rest.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, m *sgmail.SGMailV3) (*rest.Response, error) {
	call := len(f.sent)
	f.sent = append(f.sent, m)
	if f.send != nil {
		return f.send(call, m)
	}
	return &rest.Response{
		StatusCode: 202,
		Headers:    map[string][]string{"X-Message-Id": {"sg-msg-1"}},
	}, nil
}

type fakeOutbox struct {
	queued    []SingleRecord
	sentIDs   []string
	sentMsgs  []string
	failedIDs []string
	details   []string
	sgErrors  [][]string

	bulk      []BulkRecord
	completed map[string]int
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{completed: map[string]int{}}
}

func (f *fakeOutbox) LogQueued(ctx context.Context, rec SingleRecord) (string, error) {
	f.queued = append(f.queued, rec)
	return fmt.Sprintf("outbox-%d", len(f.queued)), nil
}

func (f *fakeOutbox) MarkSent(ctx context.Context, id, providerMessageID string) error {
	f.sentIDs = append(f.sentIDs, id)
	f.sentMsgs = append(f.sentMsgs, providerMessageID)
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id, detail string, sgErrors []string) error {
	f.failedIDs = append(f.failedIDs, id)
	f.details = append(f.details, detail)
	f.sgErrors = append(f.sgErrors, sgErrors)
	return nil
}

func (f *fakeOutbox) LogBulkSending(ctx context.Context, rec BulkRecord) (string, error) {
	f.bulk = append(f.bulk, rec)
	return fmt.Sprintf("bulk-%d", len(f.bulk)), nil
}

func (f *fakeOutbox) MarkBulkCompleted(ctx context.Context, id string, sent int) error {
	f.completed[id] = sent
	return nil
}

type fakeLookup struct {
	program *programs.Program
	err     error
}

func (f *fakeLookup) Get(ctx context.Context, id string) (*programs.Program, error) {
	return f.program, f.err
}

func testMailConfig() config.MailConfig {
	return config.MailConfig{
		SendGridKey: "SG.test",
		FromEmail:   "hub@example.com",
		FromName:    "Walking Football Hub",
	}
}

func TestSendProgramBrochure(t *testing.T) {
	t.Run("success marks the record sent with the provider id", func(t *testing.T) {
		sender := &fakeSender{}
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), sender, outbox, &fakeLookup{})

		res, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To: "member@example.com",
		}, "uid-1")
		require.NoError(t, err)

		assert.Equal(t, "outbox-1", res.OutboxID)
		assert.Equal(t, "sg-msg-1", res.SGMessageID)

		require.Len(t, outbox.queued, 1)
		assert.Equal(t, "member@example.com", outbox.queued[0].To)
		assert.Equal(t, "Your Walking Football Program Brochure", outbox.queued[0].Subject)
		assert.Equal(t, "uid-1", outbox.queued[0].InitiatedBy)

		assert.Equal(t, []string{"outbox-1"}, outbox.sentIDs)
		assert.Equal(t, []string{"sg-msg-1"}, outbox.sentMsgs)
		assert.Empty(t, outbox.failedIDs)
	})

	t.Run("message carries the PDF attachment and custom arg", func(t *testing.T) {
		sender := &fakeSender{}
		d := NewDispatcher(testMailConfig(), sender, newFakeOutbox(), &fakeLookup{})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To: "member@example.com",
		}, "uid-1")
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		m := sender.sent[0]

		require.Len(t, m.Attachments, 1)
		assert.Equal(t, BrochureFilename, m.Attachments[0].Filename)
		assert.Equal(t, "application/pdf", m.Attachments[0].Type)
		assert.NotEmpty(t, m.Attachments[0].Content)

		require.Len(t, m.Personalizations, 1)
		assert.Equal(t, "na", m.Personalizations[0].CustomArgs["programId"])
		assert.Equal(t, "member@example.com", m.Personalizations[0].To[0].Address)
	})

	t.Run("provider rejection marks failed, never sent", func(t *testing.T) {
		sender := &fakeSender{send: func(call int, m *sgmail.SGMailV3) (*rest.Response, error) {
			return &rest.Response{
				StatusCode: 403,
				Body:       `{"errors":[{"message":"access forbidden"},{"message":"bad api key"}]}`,
			}, nil
		}}
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), sender, outbox, &fakeLookup{})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To: "member@example.com",
		}, "uid-1")
		require.Error(t, err)

		var sendErr *SendError
		require.ErrorAs(t, err, &sendErr)
		assert.Equal(t, "outbox-1", sendErr.OutboxID)
		assert.Contains(t, sendErr.Detail, "403")
		assert.Equal(t, []string{"access forbidden", "bad api key"}, sendErr.SGErrors)

		assert.Equal(t, []string{"outbox-1"}, outbox.failedIDs)
		require.Len(t, outbox.sgErrors, 1)
		assert.Equal(t, []string{"access forbidden", "bad api key"}, outbox.sgErrors[0])
		assert.Empty(t, outbox.sentIDs)
	})

	t.Run("transport error marks failed", func(t *testing.T) {
		sender := &fakeSender{send: func(call int, m *sgmail.SGMailV3) (*rest.Response, error) {
			return nil, errors.New("connection reset")
		}}
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), sender, outbox, &fakeLookup{})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To: "member@example.com",
		}, "uid-1")
		require.Error(t, err)
		assert.Equal(t, []string{"outbox-1"}, outbox.failedIDs)
		assert.Contains(t, outbox.details[0], "connection reset")
	})

	t.Run("invalid recipient fails before any outbox write", func(t *testing.T) {
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), &fakeSender{}, outbox, &fakeLookup{})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{To: "not-an-email"}, "uid-1")
		assert.ErrorIs(t, err, ErrInvalidRecipient)
		assert.Empty(t, outbox.queued)
	})

	t.Run("unknown program id propagates not-found", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{err: programs.ErrProgramNotFound})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To:        "member@example.com",
			ProgramID: "missing",
		}, "uid-1")
		assert.ErrorIs(t, err, programs.ErrProgramNotFound)
	})

	t.Run("looked-up program snapshot lands in the outbox record", func(t *testing.T) {
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), &fakeSender{}, outbox, &fakeLookup{program: &programs.Program{
			ID:         "p1",
			Name:       "Morning Walkers",
			Location:   "Melbourne",
			Schedule:   "Fridays",
			Difficulty: "Beginner",
		}})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{
			To:        "member@example.com",
			ProgramID: "p1",
		}, "uid-1")
		require.NoError(t, err)

		require.Len(t, outbox.queued, 1)
		assert.Equal(t, "p1", outbox.queued[0].ProgramID)
		assert.Equal(t, "Morning Walkers", outbox.queued[0].ProgramMeta.Name)
	})

	t.Run("missing provider config", func(t *testing.T) {
		d := NewDispatcher(config.MailConfig{}, &fakeSender{}, newFakeOutbox(), &fakeLookup{})

		_, err := d.SendProgramBrochure(context.Background(), BrochureRequest{To: "member@example.com"}, "uid-1")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestSendBulk(t *testing.T) {
	recipients := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("r%d@example.com", i)
		}
		return out
	}

	t.Run("delivers all batches", func(t *testing.T) {
		sender := &fakeSender{}
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), sender, outbox, &fakeLookup{})

		sent, total, err := d.SendBulk(context.Background(), BulkRequest{
			Recipients: recipients(2000),
			Subject:    "News",
			Text:       "Hello",
		}, "uid-1", "admin@example.com")
		require.NoError(t, err)

		assert.Equal(t, 2000, sent)
		assert.Equal(t, 2000, total)
		assert.Len(t, sender.sent, 3)

		require.Len(t, outbox.bulk, 1)
		assert.Equal(t, 2000, outbox.bulk[0].TotalRecipients)
		assert.Equal(t, 3, outbox.bulk[0].Batches)
		assert.Equal(t, "admin@example.com", outbox.bulk[0].Email)
		assert.Equal(t, 2000, outbox.completed["bulk-1"])
	})

	t.Run("one personalization per recipient with the log id", func(t *testing.T) {
		sender := &fakeSender{}
		d := NewDispatcher(testMailConfig(), sender, newFakeOutbox(), &fakeLookup{})

		_, _, err := d.SendBulk(context.Background(), BulkRequest{
			Recipients: recipients(3),
			Subject:    "News",
			Text:       "Hello",
			BatchSize:  2,
		}, "uid-1", "admin@example.com")
		require.NoError(t, err)

		require.Len(t, sender.sent, 2)
		assert.Len(t, sender.sent[0].Personalizations, 2)
		assert.Len(t, sender.sent[1].Personalizations, 1)
		assert.Equal(t, "bulk-1", sender.sent[0].Personalizations[0].CustomArgs["bulkLogId"])
		assert.Equal(t, "1", sender.sent[1].Personalizations[0].CustomArgs["batchIndex"])
	})

	t.Run("failed batch is skipped, later batches still send", func(t *testing.T) {
		sender := &fakeSender{send: func(call int, m *sgmail.SGMailV3) (*rest.Response, error) {
			if call == 1 {
				return &rest.Response{StatusCode: 500}, nil
			}
			return &rest.Response{StatusCode: 202}, nil
		}}
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), sender, outbox, &fakeLookup{})

		sent, total, err := d.SendBulk(context.Background(), BulkRequest{
			Recipients: recipients(2000),
			Subject:    "News",
			Text:       "Hello",
		}, "uid-1", "admin@example.com")
		require.NoError(t, err)

		assert.Equal(t, 1005, sent)
		assert.Equal(t, 2000, total)
		assert.Len(t, sender.sent, 3)
		assert.Equal(t, 1005, outbox.completed["bulk-1"])
	})

	t.Run("input validation", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{})

		_, _, err := d.SendBulk(context.Background(), BulkRequest{Subject: "s", Text: "t"}, "u", "e")
		assert.ErrorIs(t, err, ErrNoRecipients)

		_, _, err = d.SendBulk(context.Background(), BulkRequest{Recipients: recipients(1), Text: "t"}, "u", "e")
		assert.ErrorIs(t, err, ErrMissingContent)

		_, _, err = d.SendBulk(context.Background(), BulkRequest{Recipients: recipients(1), Subject: "s"}, "u", "e")
		assert.ErrorIs(t, err, ErrMissingContent)
	})
}

func TestProviderErrors(t *testing.T) {
	assert.Equal(t,
		[]string{"does not match a verified Sender Identity", "bad request"},
		providerErrors(`{"errors":[{"message":"does not match a verified Sender Identity","field":"from"},{"message":"bad request"}]}`))

	assert.Nil(t, providerErrors(""))
	assert.Nil(t, providerErrors("forbidden"))
	assert.Nil(t, providerErrors(`{"errors":[]}`))
	assert.Nil(t, providerErrors(`{"errors":[{"field":"from"}]}`))
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "", messageID(nil))
	assert.Equal(t, "", messageID(&rest.Response{}))
	assert.Equal(t, "abc", messageID(&rest.Response{Headers: map[string][]string{"X-Message-Id": {"abc"}}}))
}
