package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jarcoal/httpmock"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
	"github.com/stretchr/testify/assert"
)

const testDBUrl = "http://localhost:5789"

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func newValidationOnlyWalletApi() *WalletApi {
	// handlers under test bail out before touching any service
	return &WalletApi{validate: validator.New()}
}

func TestLookupRequiresExactlyOneParam(t *testing.T) {
	wa := newValidationOnlyWalletApi()

	c, w := newTestContext("GET", "/api/v1/wallet/lookup", "")
	wa.Lookup(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext("GET", "/api/v1/wallet/lookup?email=a@b.com&publicKey=abc", "")
	wa.Lookup(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupRejectsBadPublicKey(t *testing.T) {
	wa := newValidationOnlyWalletApi()

	c, w := newTestContext("GET", "/api/v1/wallet/lookup?publicKey=0OIl-not-base58", "")
	wa.Lookup(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintRejectsInvalidInput(t *testing.T) {
	wa := newValidationOnlyWalletApi()

	c, w := newTestContext("POST", "/api/v1/wallet", `{"email":"not-an-email","turnstileToken":"t"}`)
	wa.Mint(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext("POST", "/api/v1/wallet", `{"email":"a@b.com"}`)
	wa.Mint(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext("POST", "/api/v1/wallet", `not json`)
	wa.Mint(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintConsumesSuppliedCodeWhenOptional(t *testing.T) {
	// the captcha oracle always approves in this test
	captchaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer captchaSrv.Close()
	global.Conf.Turnstile.VerifyURL = captchaSrv.URL
	global.Conf.Verification.Required = false

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ok, _ := httpmock.NewJsonResponder(200, types.OK{IsOK: true})
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", testDBUrl, repository.VerificationChallenge), ok)

	db, dbErr := repository.NewCouchDBRepository(testDBUrl, repository.VerificationChallenge, "test", "test", true)
	assert.NoError(t, dbErr)
	dbSelector := repository.NewCouchDBSelector()
	dbSelector.AddDB(db)

	email := "owner@example.com"
	digest, _ := util.ScryptEmail(email)
	missing, _ := httpmock.NewJsonResponder(404, types.CouchDBError{Error: "not_found"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.VerificationChallenge, digest), missing)

	wa := &WalletApi{
		validate:            validator.New(),
		captchaService:      services.NewCaptchaService(),
		verificationService: services.NewVerificationService(dbSelector, types.NewEnvironment(nil)),
	}

	c, w := newTestContext("POST", "/api/v1/wallet", `{"email":"owner@example.com","turnstileToken":"tok","verificationCode":"123456"}`)
	wa.Mint(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "verification code")
}

func TestResendRejectsInvalidInput(t *testing.T) {
	wa := newValidationOnlyWalletApi()

	c, w := newTestContext("POST", "/api/v1/wallet/resend", `{"turnstileToken":"t"}`)
	wa.Resend(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
