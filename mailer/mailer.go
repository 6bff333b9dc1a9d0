package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/mail"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/microcosm-cc/bluemonday"
)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]MailHandler)
	maxBigInt  = big.NewInt(math.MaxInt64)
)

type MailHandler interface {
	// SendMail dispatches an outbound message and returns the provider message id
	SendMail(ctx context.Context, msg *types.Mail) (string, error)
	// ReceiveMail parses and authenticates an inbound webhook request
	ReceiveMail(request *http.Request) (*types.InboundMail, error)
}

// RegisterHandler makes a mail handler available by the provided name.
// If RegisterHandler is called twice with the same name or if handler is nil,
// it panics.
func RegisterHandler(name string, h MailHandler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	if h == nil {
		panic("mailer: Register handler is nil")
	}
	if _, dup := handlers[name]; dup {
		panic("mailer: Register called twice for handler " + name)
	}
	handlers[name] = h
}

// GetHandler returns a registered mail handler by name
func GetHandler(name string) (MailHandler, error) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	h, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("mailer: unknown handler %q", name)
	}
	return h, nil
}

// for tests only
func unregisterAllHandlers() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = make(map[string]MailHandler)
}

// Handlers returns a sorted list of the names of the registered handlers.
func Handlers() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	list := make([]string, 0, len(handlers))
	for name := range handlers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func htmlToText(html string) string {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	// Remove all tags to leave only text
	clean := p.Sanitize(html)
	clean = strings.ReplaceAll(clean, "\n", "")
	clean = strings.ReplaceAll(clean, "\t", " ")
	clean = strings.TrimSpace(clean)
	words := strings.Fields(clean)
	clean = strings.Join(words, " ")
	return clean
}

// generateRFC2822MessageID generates a string suitable for an RFC 2822
// compliant Message-ID, e.g.:
// <1444789264909237300.3464.1819418242800517193@DESKTOP01>
func generateRFC2822MessageID(hostname string) (string, error) {
	t := time.Now().UnixNano()
	pid := os.Getpid()
	rint, err := rand.Int(rand.Reader, maxBigInt)
	if err != nil {
		return "", err
	}
	if hostname == "" {
		return "", types.ErrBadRequest
	}
	msgid := fmt.Sprintf("<%d.%d.%d@%s>", t, pid, rint, hostname)
	return msgid, nil
}

// converts a message to a mime message
func ToMime(msg *types.Mail) ([]byte, error) {

	text := msg.BodyText
	if text == "" {
		text = htmlToText(msg.BodyHTML)
	}

	outgoingMime := enmime.Builder().
		From(msg.From.Name, msg.From.Address).
		Subject(msg.Subject).
		ToAddrs(msg.To).
		Text([]byte(text)).
		Date(time.UnixMilli(msg.Timestamp)).
		HTML([]byte(msg.BodyHTML))

	if msg.ReplyTo != nil {
		outgoingMime = outgoingMime.ReplyToAddrs(msg.ReplyTo)
	}

	outgoingMime = outgoingMime.Header("X-Mailer", "Keyrelay")

	host := "localhost"
	if global.Conf.Host != "" {
		host = global.Conf.Host
	}
	id, idErr := generateRFC2822MessageID(host)
	if idErr != nil {
		global.Logger.Log("error", "error generating message id", "error", idErr)
		return nil, idErr
	}
	outgoingMime = outgoingMime.Header("Message-ID", id)

	ep, err := outgoingMime.Build()
	if err != nil {
		global.Logger.Log("error", "error building mime message", "error", err)
		return nil, err
	}
	var buf bytes.Buffer
	err = ep.Encode(&buf)
	if err != nil {
		global.Logger.Log("error", "error encoding mime message", "error", err)
		return nil, err
	}

	return buf.Bytes(), nil
}

// FormatAddress renders a display-name address pair for mail headers
func FormatAddress(name, address string) string {
	return (&mail.Address{Name: name, Address: address}).String()
}
