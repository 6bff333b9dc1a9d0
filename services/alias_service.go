package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

const maxHandleAttempts = 5

// AliasService manages the public-key-derived mailbox handles the inbound
// relay delivers to. The handle is the alias document ID, so two wallets can
// never hold the same handle.
type AliasService struct {
	aliasRepo  repository.Repository
	walletRepo repository.Repository
}

func NewAliasService(dbSelector *repository.CouchDBSelector) *AliasService {
	aliasDB, err := dbSelector.ChooseDB(repository.Alias)
	if err != nil {
		panic(err)
	}
	walletDB, err := dbSelector.ChooseDB(repository.Wallet)
	if err != nil {
		panic(err)
	}
	return &AliasService{
		aliasRepo:  aliasDB,
		walletRepo: walletDB,
	}
}

// ClaimAlias registers the alias handle derived from the wallet public key and
// points it at the wallet email. Claiming twice for the same wallet returns
// the existing account; the second return value is true in that case.
//
// On a handle collision with a different wallet the canonical handle is
// perturbed (first 6 characters plus 2 random ones) and retried.
func (as *AliasService) ClaimAlias(ctx context.Context, walletRecord *types.WalletRecord) (*types.AliasAccount, bool, error) {
	walletID, dErr := util.ScryptEmail(walletRecord.Email)
	if dErr != nil {
		return nil, false, dErr
	}

	existing, eErr := as.GetByWalletID(ctx, walletID)
	if eErr == nil {
		return existing, true, nil
	}
	if eErr != types.ErrNotFound {
		return nil, false, eErr
	}

	handle := util.DeriveAliasHandle(walletRecord.PublicKey)
	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		account := &types.AliasAccount{
			Handle:        handle,
			WalletID:      walletID,
			ForwardTarget: walletRecord.Email,
			Active:        true,
			Created:       util.GetTimestamp(),
		}
		sErr := as.aliasRepo.Save(ctx, handle, account)
		if sErr == nil {
			return account, false, nil
		}
		if sErr != types.ErrConflict {
			return nil, false, sErr
		}
		// handle taken by another wallet
		handle = util.PerturbAliasHandle(util.DeriveAliasHandle(walletRecord.PublicKey))
	}
	level.Error(global.Logger).Log("msg", "exhausted alias handle attempts", "publicKey", walletRecord.PublicKey)
	return nil, false, types.ErrConflict
}

// GetByHandle returns the alias account with the given handle, or ErrNotFound.
func (as *AliasService) GetByHandle(ctx context.Context, handle string) (*types.AliasAccount, error) {
	response, gErr := as.aliasRepo.GetByID(ctx, handle)
	if gErr != nil {
		return nil, gErr
	}
	var account types.AliasAccount
	if mErr := repository.MapToObject(response, &account); mErr != nil {
		return nil, mErr
	}
	return &account, nil
}

// GetByWalletID finds the alias claimed by a wallet, or ErrNotFound.
func (as *AliasService) GetByWalletID(ctx context.Context, walletID string) (*types.AliasAccount, error) {
	c := as.aliasRepo.GetClient().(*resty.Client)
	resp, err := c.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"selector": map[string]interface{}{
				"walletId": map[string]interface{}{
					"$eq": walletID,
				},
			},
			"use_index": []string{"alias-walletid-index", "alias-walletid-index"},
			"limit":     1,
		}).
		Post(fmt.Sprintf("%s/_find", as.aliasRepo.GetDBName()))
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to find alias by wallet", "error", err)
		return nil, err
	}
	if resp.IsError() {
		if resp.StatusCode() == 404 {
			return nil, types.ErrNotFound
		}
		return nil, types.ErrInternal
	}

	var result map[string]interface{}
	if mErr := json.Unmarshal(resp.Body(), &result); mErr != nil {
		return nil, mErr
	}
	docs, ok := result["docs"].([]interface{})
	if !ok || len(docs) == 0 {
		return nil, types.ErrNotFound
	}
	docBytes, mErr := json.Marshal(docs[0])
	if mErr != nil {
		return nil, mErr
	}
	var account types.AliasAccount
	if uErr := json.Unmarshal(docBytes, &account); uErr != nil {
		return nil, uErr
	}
	return &account, nil
}
