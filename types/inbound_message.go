package types

// InboundMessageRecord is the append-only provenance log of relayed mail.
// The record is written before the forward attempt so the message content
// survives a transport failure; Forwarded flips true only on send success.
type InboundMessageRecord struct {
	BaseDocument    `json:",inline"`
	AliasHandle     string `json:"aliasHandle"`
	FromAddress     string `json:"fromAddress"`
	FromDisplayName string `json:"fromDisplayName,omitempty"`
	Subject         string `json:"subject,omitempty"`
	BodyText        string `json:"bodyText,omitempty"`
	BodyHTML        string `json:"bodyHtml,omitempty"`
	Received        int64  `json:"received"` // epoch milliseconds
	Forwarded       bool   `json:"forwarded"`
	ForwardedAt     int64  `json:"forwardedAt,omitempty"`
}
