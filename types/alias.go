package types

// AliasAccount maps a public-key-derived mailbox handle to the email the
// inbound relay forwards to. The document ID is the handle itself, which makes
// handle uniqueness a database constraint. One account per wallet.
type AliasAccount struct {
	BaseDocument  `json:",inline"`
	Handle        string `json:"handle"`
	WalletID      string `json:"walletId"` // wallet document ID (scrypt email digest)
	ForwardTarget string `json:"forwardTarget"`
	Active        bool   `json:"active"`
	Created       int64  `json:"created"` // epoch milliseconds
}
