package services

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-kit/log/level"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/mailer"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

// NotifierService composes and dispatches all outbound mail: the one-time
// secret disclosure, the already-issued notice, verification codes and
// forwarded relay messages.
type NotifierService struct {
	handlerName string
}

func NewNotifierService() *NotifierService {
	return &NotifierService{
		handlerName: global.Conf.Mail.Provider,
	}
}

func (ns *NotifierService) fromAddress() mail.Address {
	return mail.Address{
		Name:    global.Conf.Mail.FromName,
		Address: global.Conf.Mail.FromAddress,
	}
}

func (ns *NotifierService) send(ctx context.Context, msg *types.Mail) (string, error) {
	handler, hErr := mailer.GetHandler(ns.handlerName)
	if hErr != nil {
		return "", hErr
	}
	id, sErr := handler.SendMail(ctx, msg)
	if sErr != nil {
		level.Error(global.Logger).Log("msg", "failed to send mail", "subject", msg.Subject, "error", sErr)
		return "", types.ErrDispatchFailed
	}
	return id, nil
}

// SendDisclosure emails the wallet secret to its owner. The message carries
// the base58 encoded 64 byte secret plus the same bytes as a decimal array
// for apps that import raw key material; this is the only channel the secret
// ever leaves the server on.
func (ns *NotifierService) SendDisclosure(ctx context.Context, record *types.WalletRecord) error {
	if len(record.SecretKey) == 0 {
		return types.ErrNoSecretMaterial
	}
	secret := util.EncodeKey(record.SecretKey)
	secretBytes := util.KeyByteArray(record.SecretKey)

	html := fmt.Sprintf(`<html><body>
<h2>Your wallet is ready</h2>
<p>A new wallet has been created for <b>%s</b>.</p>
<p>Public key:</p>
<pre>%s</pre>
<p>Private key (keep this safe, it will not be shown again):</p>
<pre>%s</pre>
<p>Private key as a byte array, for wallet apps that import raw keys:</p>
<pre>%s</pre>
<p>Import the private key into any compatible wallet application to take full control of your funds.</p>
</body></html>`, record.Email, record.PublicKey, secret, secretBytes)

	msg := &types.Mail{
		From:      ns.fromAddress(),
		To:        []mail.Address{{Address: record.Email}},
		Subject:   "Your wallet is ready",
		BodyText:  fmt.Sprintf("Your wallet is ready.\n\nPublic key:\n%s\n\nPrivate key (keep this safe):\n%s\n\nPrivate key as a byte array:\n%s\n", record.PublicKey, secret, secretBytes),
		BodyHTML:  html,
		Timestamp: util.GetTimestamp(),
	}
	_, err := ns.send(ctx, msg)
	return err
}

// SendAlreadyIssuedNotice tells the owner somebody requested a wallet for an
// address that already holds one. No key material is included.
func (ns *NotifierService) SendAlreadyIssuedNotice(ctx context.Context, record *types.WalletRecord) error {
	html := fmt.Sprintf(`<html><body>
<p>A wallet creation was requested for <b>%s</b>, but this address already has a wallet.</p>
<p>Public key:</p>
<pre>%s</pre>
<p>If you lost the original email you can request a resend from the website.</p>
</body></html>`, record.Email, record.PublicKey)

	msg := &types.Mail{
		From:      ns.fromAddress(),
		To:        []mail.Address{{Address: record.Email}},
		Subject:   "Your wallet already exists",
		BodyText:  fmt.Sprintf("This address already has a wallet.\n\nPublic key:\n%s\n", record.PublicKey),
		BodyHTML:  html,
		Timestamp: util.GetTimestamp(),
	}
	_, err := ns.send(ctx, msg)
	return err
}

// SendVerificationCode emails a one-time code for proving control of an
// address before minting.
func (ns *NotifierService) SendVerificationCode(ctx context.Context, challenge *types.VerificationChallenge) error {
	ttl := global.Conf.Verification.CodeTTLMin
	html := fmt.Sprintf(`<html><body>
<p>Your verification code is:</p>
<h1>%s</h1>
<p>The code expires in %d minutes.</p>
</body></html>`, challenge.Code, ttl)

	msg := &types.Mail{
		From:      ns.fromAddress(),
		To:        []mail.Address{{Address: challenge.Email}},
		Subject:   fmt.Sprintf("%s is your verification code", challenge.Code),
		BodyText:  fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n", challenge.Code, ttl),
		BodyHTML:  html,
		Timestamp: util.GetTimestamp(),
	}
	_, err := ns.send(ctx, msg)
	return err
}

// ForwardInbound relays a message received on an alias to its forward target.
// The original sender moves into Reply-To so answering the forwarded mail
// reaches them directly.
func (ns *NotifierService) ForwardInbound(ctx context.Context, account *types.AliasAccount, inbound *types.InboundMail) (string, error) {
	replyTo := mail.Address{Name: inbound.FromDisplayName, Address: inbound.From}

	subject := inbound.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	subject = fmt.Sprintf("[%s@%s] %s", account.Handle, global.Conf.Mail.AliasDomain, subject)

	msg := &types.Mail{
		From:      ns.fromAddress(),
		To:        []mail.Address{{Address: account.ForwardTarget}},
		ReplyTo:   []mail.Address{replyTo},
		Subject:   subject,
		BodyText:  inbound.BodyText,
		BodyHTML:  inbound.BodyHTML,
		Timestamp: util.GetTimestamp(),
	}
	return ns.send(ctx, msg)
}
