package types

// WalletRecord is the identity-bound public credential. Exactly one record
// exists per email; the document ID is the scrypt digest of the lowercased
// email so the database enforces at-most-one-issuance.
//
// SecretKey holds the raw 64 byte secret (seed + public key) solely so the
// explicitly gated resend path can re-disclose it. It is never included in
// any API response.
type WalletRecord struct {
	BaseDocument     `json:",inline"`
	Email            string `json:"email"`
	PublicKey        string `json:"publicKey"` // base58 encoded
	SecretKey        []byte `json:"secretKey,omitempty"`
	Confirmed        bool   `json:"confirmed"` // true once the disclosure email was sent
	Source           string `json:"source,omitempty"`
	Created          int64  `json:"created"`                    // epoch milliseconds
	LastDisclosureAt int64  `json:"lastDisclosureAt,omitempty"` // epoch milliseconds, 0 = never
}
