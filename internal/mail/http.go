package mail

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/walking-football-hub/wfh-backend/internal/auth"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

type HTTPHandler struct {
	dispatcher *Dispatcher
}

// RegisterCompat mounts the email endpoints under the original function
// names so existing admin-console clients keep working. requireUser must be
// the bearer-token middleware.
func RegisterCompat(r gin.IRouter, d *Dispatcher, requireUser gin.HandlerFunc) {
	h := &HTTPHandler{dispatcher: d}

	r.POST("/sendProgramEmailHttp", requireUser, h.sendProgram)
	r.POST("/sendBulkEmailHttp", requireUser, h.sendBulk)
}

type sendProgramReq struct {
	To          string                 `json:"to"`
	Subject     string                 `json:"subject"`
	ProgramID   string                 `json:"programId"`
	Program     *programs.ProgramInput `json:"program"`
	MessageHTML string                 `json:"messageHtml"`
}

func (h *HTTPHandler) sendProgram(c *gin.Context) {
	var req sendProgramReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-argument", "detail": "Malformed JSON body."})
		return
	}

	res, err := h.dispatcher.SendProgramBrochure(c.Request.Context(), BrochureRequest{
		To:          req.To,
		Subject:     req.Subject,
		ProgramID:   req.ProgramID,
		Program:     req.Program,
		MessageHTML: req.MessageHTML,
	}, auth.UserFirebaseUID(c))
	if err != nil {
		h.failSend(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "id": res.OutboxID, "sgMessageId": res.SGMessageID})
}

type sendBulkReq struct {
	To        any    `json:"to"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	BatchSize int    `json:"batchSize"`
}

func (h *HTTPHandler) sendBulk(c *gin.Context) {
	var req sendBulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-argument", "detail": "Malformed JSON body."})
		return
	}

	sent, total, err := h.dispatcher.SendBulk(c.Request.Context(), BulkRequest{
		Recipients: ParseRecipients(req.To),
		Subject:    req.Subject,
		Text:       req.Text,
		BatchSize:  req.BatchSize,
	}, auth.UserFirebaseUID(c), auth.UserEmail(c))
	if err != nil {
		h.failSend(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "sent": sent, "total": total})
}

func (h *HTTPHandler) failSend(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-argument", "detail": "Invalid recipient email."})
	case errors.Is(err, ErrNoRecipients), errors.Is(err, ErrMissingContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-argument", "detail": err.Error()})
	case errors.Is(err, programs.ErrProgramNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad-program", "detail": "Program not found."})
	default:
		body := gin.H{"error": "failed", "detail": err.Error()}
		var sendErr *SendError
		if errors.As(err, &sendErr) && len(sendErr.SGErrors) > 0 {
			body["sgErrors"] = sendErr.SGErrors
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
