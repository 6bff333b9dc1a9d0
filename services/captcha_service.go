package services

import (
	"context"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/types"
)

const defaultTurnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// CaptchaService validates Cloudflare Turnstile tokens. Verification fails
// closed: if the oracle is unreachable the token is treated as invalid.
type CaptchaService struct {
	restyClient *resty.Client
	verifyURL   string
}

func NewCaptchaService() *CaptchaService {
	client := resty.New().
		SetTimeout(time.Second * 10).
		SetHeader("Accept", "application/json")

	verifyURL := global.Conf.Turnstile.VerifyURL
	if verifyURL == "" {
		verifyURL = defaultTurnstileVerifyURL
	}
	return &CaptchaService{
		restyClient: client,
		verifyURL:   verifyURL,
	}
}

// VerifyToken checks a client-supplied turnstile token. Tokens are single use;
// the oracle rejects a replayed token.
func (cs *CaptchaService) VerifyToken(ctx context.Context, token string, remoteIP string) error {
	if token == "" {
		return types.ErrVerificationFailed
	}

	var result turnstileResponse
	resp, err := cs.restyClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   global.Conf.Turnstile.SecretKey,
			"response": token,
			"remoteip": remoteIP,
		}).
		SetResult(&result).
		Post(cs.verifyURL)
	if err != nil {
		level.Error(global.Logger).Log("msg", "turnstile verification unreachable", "error", err)
		return types.ErrVerificationFailed
	}
	if resp.IsError() {
		level.Error(global.Logger).Log("msg", "turnstile verification error", "status", resp.StatusCode())
		return types.ErrVerificationFailed
	}
	if !result.Success {
		global.Logger.Log("msg", "turnstile token rejected", "codes", result.ErrorCodes)
		return types.ErrVerificationFailed
	}
	return nil
}
