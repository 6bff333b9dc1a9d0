package types

import "net/mail"

// Mail is an outbound message handed to a registered mail handler.
type Mail struct {
	From      mail.Address   `json:"from"`
	To        []mail.Address `json:"to"`
	ReplyTo   []mail.Address `json:"replyTo,omitempty"`
	Subject   string         `json:"subject"`
	BodyText  string         `json:"bodyText,omitempty"`
	BodyHTML  string         `json:"bodyHtml,omitempty"`
	Timestamp int64          `json:"timestamp"` // epoch milliseconds
}

// InboundMail is a parsed inbound webhook event from the mail provider.
type InboundMail struct {
	From            string `json:"from"`
	FromDisplayName string `json:"fromDisplayName,omitempty"`
	Recipient       string `json:"recipient"`
	Subject         string `json:"subject,omitempty"`
	BodyText        string `json:"bodyText,omitempty"`
	BodyHTML        string `json:"bodyHtml,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}
