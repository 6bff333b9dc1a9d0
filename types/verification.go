package types

// VerificationChallenge is a short lived proof of email control. The document
// ID is the scrypt digest of the email, so issuing a new code overwrites the
// prior one and at most one unconsumed challenge exists per email.
type VerificationChallenge struct {
	BaseDocument `json:",inline"`
	Email        string `json:"email"`
	Code         string `json:"code"` // 6 digits
	Created      int64  `json:"created"` // epoch milliseconds
	Expires      int64  `json:"expires"` // epoch milliseconds
	Consumed     bool   `json:"consumed"`
}
