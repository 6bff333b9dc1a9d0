package mailer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

const HandlerMailgun = "mailgun"

// MailgunHandler sends via the mailgun messages API and parses the inbound
// route webhook (multipart form posts signed with the webhook signing key).
type MailgunHandler struct {
	client     *mailgun.MailgunImpl
	signingKey string
}

func NewMailgunHandler(domain, apiKey, signingKey string) *MailgunHandler {
	mg := mailgun.NewMailgun(domain, apiKey)
	mg.SetWebhookSigningKey(signingKey)
	return &MailgunHandler{client: mg, signingKey: signingKey}
}

// SendMail builds the full MIME message (text alternative, reply-to,
// message id) and posts it through the raw MIME endpoint, so the message on
// the wire is exactly what was composed.
func (m *MailgunHandler) SendMail(ctx context.Context, msg *types.Mail) (string, error) {
	if len(msg.To) == 0 {
		return "", types.ErrBadRequest
	}
	to := make([]string, 0, len(msg.To))
	for _, t := range msg.To {
		to = append(to, FormatAddress(t.Name, t.Address))
	}

	mime, mErr := ToMime(msg)
	if mErr != nil {
		return "", mErr
	}

	message := m.client.NewMIMEMessage(io.NopCloser(bytes.NewReader(mime)), to...)
	_, id, err := m.client.Send(ctx, message)
	if err != nil {
		global.Logger.Log("error", "mailgun send failed", "error", err)
		return "", types.ErrDispatchFailed
	}
	return id, nil
}

// ReceiveMail parses a mailgun inbound route post. The signature fields are
// verified against the webhook signing key before any content is trusted.
func (m *MailgunHandler) ReceiveMail(request *http.Request) (*types.InboundMail, error) {
	if err := request.ParseMultipartForm(10 << 20); err != nil {
		// inbound routes may also post urlencoded bodies
		if fErr := request.ParseForm(); fErr != nil {
			return nil, types.ErrBadRequest
		}
	}

	sig := mailgun.Signature{
		TimeStamp: request.FormValue("timestamp"),
		Token:     request.FormValue("token"),
		Signature: request.FormValue("signature"),
	}
	verified, vErr := m.client.VerifyWebhookSignature(sig)
	if vErr != nil || !verified {
		return nil, types.ErrVerificationFailed
	}

	sender := request.FormValue("sender")
	if sender == "" {
		sender = request.FormValue("from")
	}
	fromDisplay := ""
	if from := request.FormValue("from"); from != "" {
		if parsed, pErr := util.ParseAddressHeader(from); pErr == nil {
			fromDisplay = parsed.Name
			if sender == from {
				sender = parsed.Address
			}
		}
	}

	ts := util.GetTimestamp()
	if t := request.FormValue("timestamp"); t != "" {
		if epoch, pErr := strconv.ParseInt(t, 10, 64); pErr == nil {
			ts = epoch * 1000
		}
	}

	inbound := &types.InboundMail{
		From:            sender,
		FromDisplayName: fromDisplay,
		Recipient:       request.FormValue("recipient"),
		Subject:         request.FormValue("subject"),
		BodyText:        request.FormValue("body-plain"),
		BodyHTML:        request.FormValue("body-html"),
		Timestamp:       ts,
	}
	if inbound.From == "" || inbound.Recipient == "" {
		return nil, types.ErrBadRequest
	}
	return inbound, nil
}
