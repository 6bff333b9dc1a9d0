package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/mailer"
	"github.com/keyrelay/go-keyrelay-server/metrics"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
)

type MailReceiveWebhook struct {
	relayService *services.RelayService
	env          *types.Environment
}

func NewMailReceiveWebhook(relayService *services.RelayService, env *types.Environment) *MailReceiveWebhook {
	return &MailReceiveWebhook{relayService: relayService, env: env}
}

// ReceiveMail webhook implementation
// @Summary Receive an inbound email for an alias
// @Description Records the message and forwards it to the alias owner. Responds 200 even when forwarding fails so the provider does not retry.
// @Tags Relay Webhook
// @Accept mpfd
// @Produce json
// @Success 200 {object} types.OutputRelay
// @Failure 400 {object} api.ApiError "malformed or off-domain recipient"
// @Failure 401 {object} api.ApiError "invalid webhook signature"
// @Failure 403 {object} api.ApiError "alias deactivated"
// @Failure 404 {object} api.ApiError "unknown alias"
// @Failure 500 {object} api.ApiError "internal error"
// @Router /webhook/mailgun [post]
func (m *MailReceiveWebhook) ReceiveMail(c *gin.Context) {
	handler, hErr := mailer.GetHandler(global.Conf.Mail.Provider)
	if hErr != nil {
		ApiErrorf(c, http.StatusNotImplemented, "no mail handler registered")
		return
	}

	inbound, rErr := handler.ReceiveMail(c.Request)
	if rErr != nil {
		if rErr == types.ErrVerificationFailed {
			ApiErrorf(c, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
		global.Logger.Log("msg", "failed to parse inbound mail", "error", rErr.Error())
		ApiErrorf(c, http.StatusBadRequest, "failed to parse inbound mail")
		return
	}
	metrics.RelayMessagesReceivedMetricsCount.Inc()

	record, pErr := m.relayService.HandleInbound(c.Request.Context(), inbound)
	if pErr != nil {
		switch pErr {
		case types.ErrBadRequest:
			ApiErrorf(c, http.StatusBadRequest, "recipient is not on the alias domain")
		case types.ErrNotFound:
			ApiErrorf(c, http.StatusNotFound, "no such alias")
		case types.ErrNotAuthorized:
			ApiErrorf(c, http.StatusForbidden, "alias is deactivated")
		default:
			global.Logger.Log("msg", "failed to process inbound mail", "error", pErr.Error())
			ApiErrorf(c, http.StatusInternalServerError, "failed to process inbound mail")
		}
		return
	}
	if record.Forwarded {
		metrics.RelayMessagesForwardedMetricsCount.Inc()
	}

	c.JSON(http.StatusOK, types.OutputRelay{
		Success:   true,
		MessageID: record.ID,
	})
}
