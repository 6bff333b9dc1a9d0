package repository

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// CreateWalletPublicKeyIndex creates an index on the wallets database for the
// publicKey field (wallet lookups by key go through _find)
func CreateWalletPublicKeyIndex(walletRepo Repository) error {
	dbName := Wallet
	publicKeyIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []string{"publicKey"},
		},
		"name": "wallet-publickey-index",
		"type": "json",
		"ddoc": "wallet-publickey-index",
	}
	c := walletRepo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(publicKeyIndex).Post(fmt.Sprintf("%s/%s", dbName, "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}

// CreateAliasWalletIndex creates an index on the aliases database for the
// walletId field, used to find an already claimed alias for a wallet
func CreateAliasWalletIndex(aliasRepo Repository) error {
	dbName := Alias
	walletIDIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []string{"walletId"},
		},
		"name": "alias-walletid-index",
		"type": "json",
		"ddoc": "alias-walletid-index",
	}
	c := aliasRepo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(walletIDIndex).Post(fmt.Sprintf("%s/%s", dbName, "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}
