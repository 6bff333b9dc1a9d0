package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

// WalletService owns the wallet credential records. The document ID is the
// scrypt digest of the lowercased email, which makes duplicate issuance a
// database conflict rather than a read-then-write race.
type WalletService struct {
	walletRepo repository.Repository
}

func NewWalletService(dbSelector *repository.CouchDBSelector) *WalletService {
	db, err := dbSelector.ChooseDB(repository.Wallet)
	if err != nil {
		panic(err)
	}
	return &WalletService{
		walletRepo: db,
	}
}

// MintWallet creates a credential for the email, or returns the existing one.
// The second return value is true when the credential predates this call.
//
// Two writers racing on the same email both end up observing the same single
// record: the loser of the database conflict falls back to reading the
// winner's document.
func (ws *WalletService) MintWallet(ctx context.Context, email string, source string) (*types.WalletRecord, bool, error) {
	digest, dErr := util.ScryptEmail(email)
	if dErr != nil {
		return nil, false, dErr
	}

	existing, gErr := ws.GetByEmail(ctx, email)
	if gErr == nil {
		return existing, true, nil
	}
	if gErr != types.ErrNotFound {
		return nil, false, gErr
	}

	pub, sec := util.GenerateWalletKeypair()
	record := &types.WalletRecord{
		Email:     email,
		PublicKey: util.EncodeKey(pub),
		SecretKey: sec,
		Source:    source,
		Created:   util.GetTimestamp(),
	}

	sErr := ws.walletRepo.Save(ctx, digest, record)
	if sErr == types.ErrConflict {
		// another request minted first; use its record
		winner, wErr := ws.GetByEmail(ctx, email)
		if wErr != nil {
			return nil, false, wErr
		}
		return winner, true, nil
	}
	if sErr != nil {
		return nil, false, sErr
	}
	return record, false, nil
}

// GetByEmail returns the wallet record bound to the email, or ErrNotFound.
func (ws *WalletService) GetByEmail(ctx context.Context, email string) (*types.WalletRecord, error) {
	digest, dErr := util.ScryptEmail(email)
	if dErr != nil {
		return nil, dErr
	}
	response, gErr := ws.walletRepo.GetByID(ctx, digest)
	if gErr != nil {
		return nil, gErr
	}
	var record types.WalletRecord
	if mErr := repository.MapToObject(response, &record); mErr != nil {
		return nil, mErr
	}
	return &record, nil
}

// GetByPublicKey finds a wallet by its base58 public key.
func (ws *WalletService) GetByPublicKey(ctx context.Context, b58PublicKey string) (*types.WalletRecord, error) {
	if !util.IsWalletPublicKey(b58PublicKey) {
		return nil, types.ErrInvalidPublicKey
	}

	c := ws.walletRepo.GetClient().(*resty.Client)
	resp, err := c.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"selector": map[string]interface{}{
				"publicKey": map[string]interface{}{
					"$eq": b58PublicKey,
				},
			},
			"use_index": []string{"wallet-publickey-index", "wallet-publickey-index"},
			"limit":     1,
		}).
		Post(fmt.Sprintf("%s/_find", ws.walletRepo.GetDBName()))
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to find wallet by public key", "error", err)
		return nil, err
	}
	if resp.IsError() {
		if resp.StatusCode() == 404 {
			return nil, types.ErrNotFound
		}
		level.Error(global.Logger).Log("msg", "failed to find wallet by public key", "status", resp.StatusCode())
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
	var record types.WalletRecord
	if uErr := json.Unmarshal(docBytes, &record); uErr != nil {
		return nil, uErr
	}
	return &record, nil
}

// MarkDisclosed records that the secret was emailed to the owner. Confirmed
// flips true on the first disclosure and stays true.
func (ws *WalletService) MarkDisclosed(ctx context.Context, record *types.WalletRecord) error {
	digest, dErr := util.ScryptEmail(record.Email)
	if dErr != nil {
		return dErr
	}
	record.Confirmed = true
	record.LastDisclosureAt = util.GetTimestamp()
	return ws.walletRepo.Update(ctx, digest, record)
}

// ResendAllowed reports whether the disclosure may be re-sent now. When the
// cool-down still applies it returns the remaining wait.
func (ws *WalletService) ResendAllowed(record *types.WalletRecord) (time.Duration, bool) {
	if record.LastDisclosureAt == 0 {
		return 0, true
	}
	cooldown := time.Duration(global.Conf.Mail.ResendCooldownMin) * time.Minute
	elapsed := time.Duration(util.GetTimestamp()-record.LastDisclosureAt) * time.Millisecond
	if elapsed >= cooldown {
		return 0, true
	}
	return cooldown - elapsed, false
}
