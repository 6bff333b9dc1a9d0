package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
	"github.com/stretchr/testify/assert"
)

var testDBUrl = "http://localhost:5989"

func initMockWalletService(t *testing.T) *WalletService {
	httpmock.Activate()

	ok, _ := httpmock.NewJsonResponder(200, types.OK{IsOK: true})
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", testDBUrl, repository.Wallet), ok)

	db, err := repository.NewCouchDBRepository(testDBUrl, repository.Wallet, "test", "test", true)
	if err != nil {
		t.Fatal(err)
	}
	selector := repository.NewCouchDBSelector()
	selector.AddDB(db)
	return NewWalletService(selector)
}

func TestMintWalletNew(t *testing.T) {
	ws := initMockWalletService(t)
	defer httpmock.DeactivateAndReset()

	digest, _ := util.ScryptEmail("fresh@example.com")

	notFound, _ := httpmock.NewJsonResponder(404, types.CouchDBError{Error: "not_found"})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Wallet, digest), notFound)

	created, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Wallet, digest), created)

	record, existed, err := ws.MintWallet(context.Background(), "fresh@example.com", "web")
	assert.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "fresh@example.com", record.Email)
	assert.True(t, util.IsWalletPublicKey(record.PublicKey))
	assert.Equal(t, 64, len(record.SecretKey))
	assert.Equal(t, "web", record.Source)
	assert.False(t, record.Confirmed)
}

func TestMintWalletExisting(t *testing.T) {
	ws := initMockWalletService(t)
	defer httpmock.DeactivateAndReset()

	digest, _ := util.ScryptEmail("taken@example.com")

	existing, _ := httpmock.NewJsonResponder(200, types.WalletRecord{
		Email:     "taken@example.com",
		PublicKey: "4ZkzWr1QfGjzw3mxz7YmEhYBWJjqg2vJCBLRpV86vfmA",
		Confirmed: true,
	})
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Wallet, digest), existing)

	record, existed, err := ws.MintWallet(context.Background(), "taken@example.com", "web")
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "4ZkzWr1QfGjzw3mxz7YmEhYBWJjqg2vJCBLRpV86vfmA", record.PublicKey)
}

func TestMintWalletConflictFallsBack(t *testing.T) {
	ws := initMockWalletService(t)
	defer httpmock.DeactivateAndReset()

	digest, _ := util.ScryptEmail("raced@example.com")
	getURL := fmt.Sprintf("%s/%s/%s", testDBUrl, repository.Wallet, digest)

	// first read: no record yet; after the conflict: the winner's record
	calls := 0
	httpmock.RegisterResponder("GET", getURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return httpmock.NewJsonResponse(404, types.CouchDBError{Error: "not_found"})
		}
		return httpmock.NewJsonResponse(200, types.WalletRecord{
			Email:     "raced@example.com",
			PublicKey: "8Nkzp1yhbQkXDwVPRLmLZQgF5vuS3kTrJ2b6DZwh7iqM",
		})
	})

	conflict, _ := httpmock.NewJsonResponder(409, types.CouchDBError{Error: "conflict"})
	httpmock.RegisterResponder("PUT", getURL, conflict)

	record, existed, err := ws.MintWallet(context.Background(), "raced@example.com", "")
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "8Nkzp1yhbQkXDwVPRLmLZQgF5vuS3kTrJ2b6DZwh7iqM", record.PublicKey)
}

func TestResendAllowed(t *testing.T) {
	ws := initMockWalletService(t)
	defer httpmock.DeactivateAndReset()

	global.Conf.Mail.ResendCooldownMin = 5

	// never disclosed: allowed
	wait, ok := ws.ResendAllowed(&types.WalletRecord{})
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), wait)

	// disclosed just now: blocked with remaining wait
	wait, ok = ws.ResendAllowed(&types.WalletRecord{LastDisclosureAt: util.GetTimestamp()})
	assert.False(t, ok)
	assert.True(t, wait > 0)

	// disclosed long ago: allowed
	wait, ok = ws.ResendAllowed(&types.WalletRecord{LastDisclosureAt: util.GetTimestamp() - 6*60*1000})
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), wait)
}
