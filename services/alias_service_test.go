package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
	"github.com/stretchr/testify/assert"
)

func initMockAliasService(t *testing.T) *AliasService {
	httpmock.Activate()

	ok, _ := httpmock.NewJsonResponder(200, types.OK{IsOK: true})
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", testDBUrl, repository.Alias), ok)
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", testDBUrl, repository.Wallet), ok)

	aliasDB, err := repository.NewCouchDBRepository(testDBUrl, repository.Alias, "test", "test", true)
	if err != nil {
		t.Fatal(err)
	}
	walletDB, err := repository.NewCouchDBRepository(testDBUrl, repository.Wallet, "test", "test", true)
	if err != nil {
		t.Fatal(err)
	}
	selector := repository.NewCouchDBSelector()
	selector.AddDB(aliasDB)
	selector.AddDB(walletDB)
	return NewAliasService(selector)
}

func registerNoExistingAlias() {
	noDocs, _ := httpmock.NewJsonResponder(200, map[string]interface{}{"docs": []interface{}{}})
	httpmock.RegisterResponder("POST", fmt.Sprintf("%s/%s/_find", testDBUrl, repository.Alias), noDocs)
}

func TestClaimAlias(t *testing.T) {
	as := initMockAliasService(t)
	defer httpmock.DeactivateAndReset()

	registerNoExistingAlias()

	walletRecord := &types.WalletRecord{
		Email:     "owner@example.com",
		PublicKey: "GfHq2tTVk9z4eXgyNotRealKeyMaterial",
	}
	handle := util.DeriveAliasHandle(walletRecord.PublicKey)

	created, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Alias, handle), created)

	account, existed, err := as.ClaimAlias(context.Background(), walletRecord)
	assert.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, handle, account.Handle)
	assert.Equal(t, "owner@example.com", account.ForwardTarget)
	assert.True(t, account.Active)
}

func TestClaimAliasCollision(t *testing.T) {
	as := initMockAliasService(t)
	defer httpmock.DeactivateAndReset()

	registerNoExistingAlias()

	walletRecord := &types.WalletRecord{
		Email:     "other@example.com",
		PublicKey: "GfHq2tTVk9z4eXgyNotRealKeyMaterial",
	}
	canonical := util.DeriveAliasHandle(walletRecord.PublicKey)

	conflict, _ := httpmock.NewJsonResponder(409, types.CouchDBError{Error: "conflict"})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Alias, canonical), conflict)

	// any perturbed handle succeeds
	httpmock.RegisterResponder("PUT", fmt.Sprintf("=~^%s/%s/\\w{8}$", testDBUrl, repository.Alias),
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(201, types.OK{IsOK: true})
		})

	account, existed, err := as.ClaimAlias(context.Background(), walletRecord)
	assert.NoError(t, err)
	assert.False(t, existed)
	assert.NotEqual(t, canonical, account.Handle)
	assert.Equal(t, 8, len(account.Handle))
	assert.True(t, strings.HasPrefix(account.Handle, canonical[:6]))
}

func TestClaimAliasIdempotent(t *testing.T) {
	as := initMockAliasService(t)
	defer httpmock.DeactivateAndReset()

	walletRecord := &types.WalletRecord{
		Email:     "owner@example.com",
		PublicKey: "GfHq2tTVk9z4eXgyNotRealKeyMaterial",
	}
	walletID, _ := util.ScryptEmail(walletRecord.Email)

	existing, _ := httpmock.NewJsonResponder(200, map[string]interface{}{
		"docs": []interface{}{
			types.AliasAccount{
				Handle:        "gfhq2ttv",
				WalletID:      walletID,
				ForwardTarget: walletRecord.Email,
				Active:        true,
			},
		},
	})
	httpmock.RegisterResponder("POST", fmt.Sprintf("%s/%s/_find", testDBUrl, repository.Alias), existing)

	account, existed, err := as.ClaimAlias(context.Background(), walletRecord)
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "gfhq2ttv", account.Handle)
}
