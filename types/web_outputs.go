package types

type OutputMintWallet struct {
	PublicKey string `json:"publicKey"`
	Created   int64  `json:"createdAt"`
	Exists    bool   `json:"exists,omitempty"` // true when the credential predates this request
	Message   string `json:"message,omitempty"`
}

type OutputLookup struct {
	Found     bool   `json:"found"`
	Email     string `json:"email,omitempty"` // masked when looked up by public key
	PublicKey string `json:"publicKey,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
	Created   int64  `json:"createdAt,omitempty"`
	Message   string `json:"message,omitempty"`
}

type OutputClaimAlias struct {
	Alias     string `json:"alias"` // full address (handle@aliasDomain)
	ForwardTo string `json:"forwardTo"`
	Exists    bool   `json:"exists,omitempty"`
}

type OutputSendCode struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"` // minutes
}

type OutputRelay struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

// RetryAfterResponse is the structured throttle/cool-down payload; RetryAfter
// is whole minutes, rounded up, so clients can render a countdown.
type RetryAfterResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}
