package mail

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walking-football-hub/wfh-backend/config"
	"github.com/walking-football-hub/wfh-backend/internal/auth"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

func stubUser(c *gin.Context) {
	c.Set(auth.CtxFirebaseUID, "uid-1")
	c.Set(auth.CtxEmail, "admin@example.com")
	c.Next()
}

func newMailRouter(d *Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterCompat(r, d, stubUser)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSendProgramEmailHTTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		outbox := newFakeOutbox()
		d := NewDispatcher(testMailConfig(), &fakeSender{}, outbox, &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendProgramEmailHttp", gin.H{"to": "member@example.com"})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			OK          bool   `json:"ok"`
			ID          string `json:"id"`
			SGMessageID string `json:"sgMessageId"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "outbox-1", resp.ID)
		assert.Equal(t, "sg-msg-1", resp.SGMessageID)
		assert.Equal(t, "uid-1", outbox.queued[0].InitiatedBy)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendProgramEmailHttp", gin.H{"to": "nope"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid-argument")
		assert.Contains(t, rr.Body.String(), "Invalid recipient email.")
	})

	t.Run("unknown program", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{err: programs.ErrProgramNotFound})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendProgramEmailHttp", gin.H{"to": "member@example.com", "programId": "missing"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "bad-program")
	})

	t.Run("provider rejection surfaces the error messages", func(t *testing.T) {
		sender := &fakeSender{send: func(call int, m *sgmail.SGMailV3) (*rest.Response, error) {
			return &rest.Response{
				StatusCode: 403,
				Body:       `{"errors":[{"message":"access forbidden"}]}`,
			}, nil
		}}
		d := NewDispatcher(testMailConfig(), sender, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendProgramEmailHttp", gin.H{"to": "member@example.com"})
		require.Equal(t, http.StatusInternalServerError, rr.Code)

		var resp struct {
			Error    string   `json:"error"`
			Detail   string   `json:"detail"`
			SGErrors []string `json:"sgErrors"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "failed", resp.Error)
		assert.Equal(t, []string{"access forbidden"}, resp.SGErrors)
	})

	t.Run("provider not configured", func(t *testing.T) {
		d := NewDispatcher(config.MailConfig{}, &fakeSender{}, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendProgramEmailHttp", gin.H{"to": "member@example.com"})
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "SENDGRID_KEY")
	})
}

func TestSendBulkEmailHTTP(t *testing.T) {
	t.Run("array recipients", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendBulkEmailHttp", gin.H{
			"to":      []string{"a@example.com", "b@example.com"},
			"subject": "News",
			"text":    "Hello",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			OK    bool `json:"ok"`
			Sent  int  `json:"sent"`
			Total int  `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, 2, resp.Sent)
		assert.Equal(t, 2, resp.Total)
	})

	t.Run("comma-separated string recipients", func(t *testing.T) {
		sender := &fakeSender{}
		d := NewDispatcher(testMailConfig(), sender, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendBulkEmailHttp", gin.H{
			"to":      "a@example.com, b@example.com",
			"subject": "News",
			"text":    "Hello",
		})
		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, sender.sent, 1)
		assert.Len(t, sender.sent[0].Personalizations, 2)
	})

	t.Run("missing recipients", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendBulkEmailHttp", gin.H{"subject": "News", "text": "Hello"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid-argument")
	})

	t.Run("missing content", func(t *testing.T) {
		d := NewDispatcher(testMailConfig(), &fakeSender{}, newFakeOutbox(), &fakeLookup{})
		r := newMailRouter(d)

		rr := postJSON(t, r, "/sendBulkEmailHttp", gin.H{"to": []string{"a@example.com"}, "subject": "News"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "subject and text are required")
	})
}
