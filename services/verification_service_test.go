package services

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
	"github.com/stretchr/testify/assert"
)

func initMockVerificationService(t *testing.T) *VerificationService {
	httpmock.Activate()

	ok, _ := httpmock.NewJsonResponder(200, types.OK{IsOK: true})
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", testDBUrl, repository.VerificationChallenge), ok)

	db, err := repository.NewCouchDBRepository(testDBUrl, repository.VerificationChallenge, "test", "test", true)
	if err != nil {
		t.Fatal(err)
	}
	return &VerificationService{verificationRepo: db}
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 10; i++ {
		code, err := generateCode()
		assert.NoError(t, err)
		assert.True(t, re.MatchString(code))
	}
}

func TestConsumeCode(t *testing.T) {
	vs := initMockVerificationService(t)
	defer httpmock.DeactivateAndReset()

	email := "owner@example.com"
	digest, _ := util.ScryptEmail(email)
	docURL := fmt.Sprintf("%s/%s/%s", testDBUrl, repository.VerificationChallenge, digest)

	pending, _ := httpmock.NewJsonResponder(200, types.VerificationChallenge{
		Email:   email,
		Code:    "123456",
		Created: util.GetTimestamp(),
		Expires: util.GetTimestamp() + 10*60*1000,
	})
	httpmock.RegisterResponder("GET", docURL, pending)

	updated, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("PUT", docURL, updated)

	assert.NoError(t, vs.ConsumeCode(context.Background(), email, "123456"))
	assert.Equal(t, types.ErrVerificationFailed, vs.ConsumeCode(context.Background(), email, "654321"))
}

func TestConsumeCodeExpired(t *testing.T) {
	vs := initMockVerificationService(t)
	defer httpmock.DeactivateAndReset()

	email := "late@example.com"
	digest, _ := util.ScryptEmail(email)
	docURL := fmt.Sprintf("%s/%s/%s", testDBUrl, repository.VerificationChallenge, digest)

	expired, _ := httpmock.NewJsonResponder(200, types.VerificationChallenge{
		Email:   email,
		Code:    "123456",
		Created: util.GetTimestamp() - 20*60*1000,
		Expires: util.GetTimestamp() - 10*60*1000,
	})
	httpmock.RegisterResponder("GET", docURL, expired)

	assert.Equal(t, types.ErrVerificationFailed, vs.ConsumeCode(context.Background(), email, "123456"))
}

func TestConsumeCodeAlreadyUsed(t *testing.T) {
	vs := initMockVerificationService(t)
	defer httpmock.DeactivateAndReset()

	email := "reuse@example.com"
	digest, _ := util.ScryptEmail(email)
	docURL := fmt.Sprintf("%s/%s/%s", testDBUrl, repository.VerificationChallenge, digest)

	consumed, _ := httpmock.NewJsonResponder(200, types.VerificationChallenge{
		Email:    email,
		Code:     "123456",
		Created:  util.GetTimestamp(),
		Expires:  util.GetTimestamp() + 10*60*1000,
		Consumed: true,
	})
	httpmock.RegisterResponder("GET", docURL, consumed)

	assert.Equal(t, types.ErrVerificationFailed, vs.ConsumeCode(context.Background(), email, "123456"))
}

func TestConsumeCodeMissing(t *testing.T) {
	vs := initMockVerificationService(t)
	defer httpmock.DeactivateAndReset()

	email := "nobody@example.com"
	digest, _ := util.ScryptEmail(email)
	docURL := fmt.Sprintf("%s/%s/%s", testDBUrl, repository.VerificationChallenge, digest)

	missing, _ := httpmock.NewJsonResponder(404, types.CouchDBError{Error: "not_found"})
	httpmock.RegisterResponder("GET", docURL, missing)

	assert.Equal(t, types.ErrVerificationFailed, vs.ConsumeCode(context.Background(), email, "123456"))
}
