package api

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/keyrelay/go-keyrelay-server/api/interceptors"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/metrics"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

type WalletApi struct {
	walletService       *services.WalletService
	verificationService *services.VerificationService
	captchaService      *services.CaptchaService
	notifierService     *services.NotifierService
	validate            *validator.Validate
}

func NewWalletApi(walletService *services.WalletService, verificationService *services.VerificationService, captchaService *services.CaptchaService, notifierService *services.NotifierService) *WalletApi {
	return &WalletApi{
		walletService:       walletService,
		verificationService: verificationService,
		captchaService:      captchaService,
		notifierService:     notifierService,
		validate:            validator.New(),
	}
}

func (wa *WalletApi) clientIP(c *gin.Context) string {
	ip, _ := interceptors.GetIP(c)
	if ip == nil {
		return ""
	}
	return *ip
}

// Mint a wallet credential
// @Summary Create a wallet bound to an email address
// @Description Generates an ed25519 keypair, emails the private key to the owner and stores only the public record
// @Tags Wallet
// @Param mint body types.InputMintWallet true "mint request"
// @Success 201 {object} types.OutputMintWallet
// @Success 200 {object} types.OutputMintWallet "wallet already exists"
// @Failure 400 {object} api.ApiError "invalid input or verification code"
// @Failure 403 {object} api.ApiError "captcha verification failed"
// @Failure 429 {object} types.RetryAfterResponse "rate limit exceeded"
// @Failure 500 {object} api.ApiError "internal server error"
// @Accept json
// @Produce json
// @Router /api/v1/wallet [post]
func (wa *WalletApi) Mint(c *gin.Context) {
	var input types.InputMintWallet
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if vErr := wa.validate.Struct(input); vErr != nil {
		msg := ValidatorErrorToUser(vErr.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	if cErr := wa.captchaService.VerifyToken(c.Request.Context(), input.TurnstileToken, wa.clientIP(c)); cErr != nil {
		ApiErrorf(c, http.StatusForbidden, "captcha verification failed")
		return
	}

	email, eErr := util.ValidateEmail(input.Email)
	if eErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid email address")
		return
	}

	// a supplied code is always consumed, even when verification is optional
	if global.Conf.Verification.Required || input.VerificationCode != "" {
		if input.VerificationCode == "" {
			ApiErrorf(c, http.StatusBadRequest, "verification code is required")
			return
		}
		if vErr := wa.verificationService.ConsumeCode(c.Request.Context(), email, input.VerificationCode); vErr != nil {
			if vErr == types.ErrVerificationFailed {
				ApiErrorf(c, http.StatusBadRequest, "invalid or expired verification code")
				return
			}
			ApiErrorf(c, http.StatusInternalServerError, "failed to check verification code")
			return
		}
	}

	mintStart := time.Now()
	record, existed, mErr := wa.walletService.MintWallet(c.Request.Context(), email, input.Source)
	if mErr != nil {
		global.Logger.Log("msg", "failed to mint wallet", "error", mErr.Error())
		ApiErrorf(c, http.StatusInternalServerError, "failed to create wallet")
		return
	}

	if existed {
		// notify the owner; no key material leaves on this path
		if nErr := wa.notifierService.SendAlreadyIssuedNotice(c.Request.Context(), record); nErr != nil {
			global.Logger.Log("msg", "failed to send already-issued notice", "error", nErr.Error())
		}
		c.JSON(http.StatusOK, types.OutputMintWallet{
			PublicKey: record.PublicKey,
			Created:   record.Created,
			Exists:    true,
			Message:   "a wallet already exists for this email",
		})
		return
	}

	if dErr := wa.notifierService.SendDisclosure(c.Request.Context(), record); dErr != nil {
		// the record exists; the resend endpoint can recover delivery
		global.Logger.Log("msg", "failed to send disclosure email", "error", dErr.Error())
		ApiErrorf(c, http.StatusInternalServerError, "wallet created but the disclosure email failed, please use resend")
		return
	}
	if uErr := wa.walletService.MarkDisclosed(c.Request.Context(), record); uErr != nil {
		global.Logger.Log("msg", "failed to mark wallet disclosed", "error", uErr.Error())
	}
	metrics.WalletsMintedMetricsCount.Inc()
	metrics.DisclosuresSentMetricsCount.Inc()
	metrics.WalletMintProcessingLatency.Observe(float64(time.Since(mintStart).Milliseconds()))

	c.JSON(http.StatusCreated, types.OutputMintWallet{
		PublicKey: record.PublicKey,
		Created:   record.Created,
	})
}

// Resend the disclosure email
// @Summary Resend the wallet disclosure email
// @Description Re-sends the private key email to the wallet owner, subject to a cool-down
// @Tags Wallet
// @Param resend body types.InputResendWallet true "resend request"
// @Success 200 {object} types.OutputMintWallet
// @Success 200 {object} types.RetryAfterResponse "cool-down still active"
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 403 {object} api.ApiError "captcha verification failed"
// @Failure 404 {object} api.ApiError "no wallet for this email"
// @Failure 409 {object} api.ApiError "no secret material retained"
// @Failure 500 {object} api.ApiError "internal server error"
// @Accept json
// @Produce json
// @Router /api/v1/wallet/resend [post]
func (wa *WalletApi) Resend(c *gin.Context) {
	var input types.InputResendWallet
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if vErr := wa.validate.Struct(input); vErr != nil {
		msg := ValidatorErrorToUser(vErr.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	if cErr := wa.captchaService.VerifyToken(c.Request.Context(), input.TurnstileToken, wa.clientIP(c)); cErr != nil {
		ApiErrorf(c, http.StatusForbidden, "captcha verification failed")
		return
	}

	email, eErr := util.ValidateEmail(input.Email)
	if eErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid email address")
		return
	}

	record, gErr := wa.walletService.GetByEmail(c.Request.Context(), email)
	if gErr != nil {
		if gErr == types.ErrNotFound {
			ApiErrorf(c, http.StatusNotFound, "no wallet found for this email")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to look up wallet")
		return
	}
	if len(record.SecretKey) == 0 {
		ApiErrorf(c, http.StatusConflict, "the private key is no longer retained and cannot be resent")
		return
	}

	// the cool-down answer is a 200: the client renders the countdown, it is
	// not an error condition
	if wait, ok := wa.walletService.ResendAllowed(record); !ok {
		c.JSON(http.StatusOK, types.RetryAfterResponse{
			Error:      "disclosure email was sent recently",
			RetryAfter: int(math.Ceil(wait.Minutes())),
		})
		return
	}

	if dErr := wa.notifierService.SendDisclosure(c.Request.Context(), record); dErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to send disclosure email")
		return
	}
	if uErr := wa.walletService.MarkDisclosed(c.Request.Context(), record); uErr != nil {
		global.Logger.Log("msg", "failed to mark wallet disclosed", "error", uErr.Error())
	}
	metrics.DisclosuresSentMetricsCount.Inc()

	c.JSON(http.StatusOK, types.OutputMintWallet{
		PublicKey: record.PublicKey,
		Created:   record.Created,
		Exists:    true,
		Message:   "disclosure email sent",
	})
}

// Lookup a wallet
// @Summary Look up a wallet by email or public key
// @Description Exactly one of email or publicKey must be supplied. Looking up by public key returns a masked email.
// @Tags Wallet
// @Param email query string false "email address"
// @Param publicKey query string false "base58 public key"
// @Success 200 {object} types.OutputLookup
// @Failure 400 {object} api.ApiError "invalid query"
// @Failure 404 {object} types.OutputLookup "not found"
// @Produce json
// @Router /api/v1/wallet/lookup [get]
func (wa *WalletApi) Lookup(c *gin.Context) {
	email := c.Query("email")
	publicKey := c.Query("publicKey")

	if (email == "") == (publicKey == "") {
		ApiErrorf(c, http.StatusBadRequest, "provide exactly one of email or publicKey")
		return
	}

	if email != "" {
		normalized, eErr := util.ValidateEmail(email)
		if eErr != nil {
			ApiErrorf(c, http.StatusBadRequest, "invalid email address")
			return
		}
		record, gErr := wa.walletService.GetByEmail(c.Request.Context(), normalized)
		if gErr != nil {
			if gErr == types.ErrNotFound {
				c.JSON(http.StatusNotFound, types.OutputLookup{Found: false, Message: "no wallet found"})
				return
			}
			ApiErrorf(c, http.StatusInternalServerError, "failed to look up wallet")
			return
		}
		c.JSON(http.StatusOK, types.OutputLookup{
			Found:     true,
			PublicKey: record.PublicKey,
			Confirmed: record.Confirmed,
			Created:   record.Created,
		})
		return
	}

	if !util.IsWalletPublicKey(publicKey) {
		ApiErrorf(c, http.StatusBadRequest, "invalid public key")
		return
	}
	record, gErr := wa.walletService.GetByPublicKey(c.Request.Context(), publicKey)
	if gErr != nil {
		if gErr == types.ErrNotFound {
			c.JSON(http.StatusNotFound, types.OutputLookup{Found: false, Message: "no wallet found"})
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to look up wallet")
		return
	}
	c.JSON(http.StatusOK, types.OutputLookup{
		Found:     true,
		Email:     util.MaskEmail(record.Email),
		PublicKey: record.PublicKey,
		Confirmed: record.Confirmed,
		Created:   record.Created,
	})
}

// Send a verification code
// @Summary Send a one-time email verification code
// @Description Emails a 6 digit code used to prove control of an address before minting
// @Tags Verification
// @Param verification body types.InputSendCode true "verification request"
// @Success 200 {object} types.OutputSendCode
// @Failure 400 {object} api.ApiError "invalid input"
// @Failure 429 {object} types.RetryAfterResponse "too many codes requested"
// @Failure 500 {object} api.ApiError "internal server error"
// @Accept json
// @Produce json
// @Router /api/v1/verification [post]
func (wa *WalletApi) SendVerificationCode(c *gin.Context) {
	var input types.InputSendCode
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if vErr := wa.validate.Struct(input); vErr != nil {
		msg := ValidatorErrorToUser(vErr.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	email, eErr := util.ValidateEmail(input.Email)
	if eErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid email address")
		return
	}

	challenge, iErr := wa.verificationService.IssueCode(c.Request.Context(), email)
	if iErr != nil {
		if iErr == types.ErrTooManyRequests {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.RetryAfterResponse{
				Error:      "too many verification codes requested for this email",
				RetryAfter: 60,
			})
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to issue verification code")
		return
	}

	if sErr := wa.notifierService.SendVerificationCode(c.Request.Context(), challenge); sErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to send verification code")
		return
	}
	metrics.VerificationCodesIssuedMetricsCount.Inc()

	c.JSON(http.StatusOK, types.OutputSendCode{
		Message:   "verification code sent",
		ExpiresIn: global.Conf.Verification.CodeTTLMin,
	})
}
