package types

// mint a new wallet credential
type InputMintWallet struct {
	Email            string `json:"email" validate:"required,email"`
	Source           string `json:"source,omitempty"`
	TurnstileToken   string `json:"turnstileToken" validate:"required"`
	VerificationCode string `json:"verificationCode,omitempty"`
}

// resend the disclosure email (separately gated)
type InputResendWallet struct {
	Email          string `json:"email" validate:"required,email"`
	TurnstileToken string `json:"turnstileToken" validate:"required"`
}

// request a one-time email verification code
type InputSendCode struct {
	Email string `json:"email" validate:"required,email"`
}

// claim the alias derived from a wallet public key
type InputClaimAlias struct {
	PublicKey string `json:"publicKey" validate:"required"`
}
