package telephony

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"dialer-platform/internal/dispositions"
	"dialer-platform/internal/metrics"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// CallProcessor applies a call event to CRM state.
type CallProcessor interface {
	Process(ctx context.Context, ev dispositions.CallEvent) (dispositions.Result, error)
}

// VoiceAIWebhookHandler converts the voice-AI webhook to internal types and
// delegates to the processor.
//
// No business logic here.
type VoiceAIWebhookHandler struct {
	Processor CallProcessor

	// Secret enables signature verification when non-empty.
	Secret  string
	Metrics *metrics.DispositionMetrics
}

func (h VoiceAIWebhookHandler) HandleCallEvent(c *gin.Context) {
	log := logger.FromGin(c)
	start := time.Now()

	if h.Processor == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call processor not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn("voice webhook read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if h.Secret != "" && !VerifySignature(h.Secret, body, c.GetHeader(headerSignature)) {
		h.Metrics.ObserveWebhook("unknown", "unauthorized")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	payload, err := ParseVoiceAIWebhook(body)
	if err != nil {
		log.Error("voice webhook parse failed", "err", err)
		h.Metrics.ObserveWebhook("unknown", "malformed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid json"})
		return
	}
	event := metricEvent(payload.Event)
	defer func() {
		h.Metrics.ObserveWebhookLatency(event, time.Since(start).Seconds())
	}()

	if !dispositions.Handled(payload.Event) {
		h.Metrics.ObserveWebhook(event, "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	res, err := h.Processor.Process(c.Request.Context(), payload.ToCallEvent())
	switch {
	case errors.Is(err, dispositions.ErrMissingCallID):
		h.Metrics.ObserveWebhook(event, "rejected")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	case errors.Is(err, dispositions.ErrUnresolvedUser):
		h.Metrics.ObserveWebhook(event, "rejected")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unable to resolve user"})
		return
	case err != nil:
		log.Error("voice webhook processing failed", "err", err)
		h.Metrics.ObserveWebhook(event, "error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	result := "processed"
	if res.Duplicate {
		result = "duplicate"
	}
	h.Metrics.ObserveWebhook(event, result)
	c.JSON(http.StatusOK, gin.H{
		"received":    true,
		"processed":   res.Processed,
		"callId":      res.CallID,
		"disposition": res.Disposition,
		"leadId":      res.LeadID,
		"duplicate":   res.Duplicate,
	})
}

// metricEvent bounds the event label to the handled set.
func metricEvent(event string) string {
	if dispositions.Handled(event) {
		return event
	}
	return "other"
}
