package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

// RelayService handles mail arriving on the alias domain: it records the
// message for provenance and forwards it to the alias owner.
type RelayService struct {
	messageRepo repository.Repository
	aliasSvc    *AliasService
	notifier    *NotifierService
}

func NewRelayService(dbSelector *repository.CouchDBSelector, aliasSvc *AliasService, notifier *NotifierService) *RelayService {
	db, err := dbSelector.ChooseDB(repository.InboundMessage)
	if err != nil {
		panic(err)
	}
	return &RelayService{
		messageRepo: db,
		aliasSvc:    aliasSvc,
		notifier:    notifier,
	}
}

// extractHandle pulls the alias handle out of the recipient address. The
// recipient must be on the configured alias domain.
func extractHandle(recipient string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(recipient))
	if parsed, pErr := util.ParseAddressHeader(recipient); pErr == nil {
		addr = strings.ToLower(parsed.Address)
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "", types.ErrBadRequest
	}
	domain := addr[at+1:]
	if domain != strings.ToLower(global.Conf.Mail.AliasDomain) {
		return "", types.ErrBadRequest
	}
	return addr[:at], nil
}

// HandleInbound records an inbound message and forwards it to the alias owner.
// The record is persisted before the forward attempt, so a transport failure
// never loses the message content; the returned record reflects whether the
// forward succeeded.
//
// ErrBadRequest: recipient malformed or off the alias domain.
// ErrNotFound: no alias with that handle.
// ErrNotAuthorized: alias deactivated.
func (rs *RelayService) HandleInbound(ctx context.Context, inbound *types.InboundMail) (*types.InboundMessageRecord, error) {
	handle, hErr := extractHandle(inbound.Recipient)
	if hErr != nil {
		return nil, hErr
	}

	account, aErr := rs.aliasSvc.GetByHandle(ctx, handle)
	if aErr != nil {
		return nil, aErr
	}
	if !account.Active {
		return nil, types.ErrNotAuthorized
	}

	record := &types.InboundMessageRecord{
		AliasHandle:     handle,
		FromAddress:     inbound.From,
		FromDisplayName: inbound.FromDisplayName,
		Subject:         inbound.Subject,
		BodyText:        inbound.BodyText,
		BodyHTML:        inbound.BodyHTML,
		Received:        util.GetTimestamp(),
	}
	docID := uuid.NewString()
	if sErr := rs.messageRepo.Save(ctx, docID, record); sErr != nil {
		return nil, sErr
	}
	record.ID = docID

	// a forward failure is not fatal; the message is already stored and a
	// non-2xx response would make the provider retry and duplicate the record
	if _, fErr := rs.notifier.ForwardInbound(ctx, account, inbound); fErr != nil {
		global.Logger.Log("msg", "forward failed, message stored", "handle", handle, "error", fErr)
		return record, nil
	}

	record.Forwarded = true
	record.ForwardedAt = util.GetTimestamp()
	if uErr := rs.updateForwarded(ctx, docID, record); uErr != nil {
		global.Logger.Log("msg", "failed to update forwarded flag", "id", docID, "error", uErr)
	}
	return record, nil
}

func (rs *RelayService) updateForwarded(ctx context.Context, docID string, record *types.InboundMessageRecord) error {
	// fetch the revision assigned on save
	response, gErr := rs.messageRepo.GetByID(ctx, docID)
	if gErr != nil {
		return gErr
	}
	var stored types.InboundMessageRecord
	if mErr := repository.MapToObject(response, &stored); mErr != nil {
		return mErr
	}
	record.BaseDocument = stored.BaseDocument
	return rs.messageRepo.Update(ctx, docID, record)
}
