package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
	"github.com/go-resty/resty/v2"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

// VerificationService issues and consumes one-time email verification codes.
// Challenges live in the verifications database keyed by the email digest, so
// a fresh code replaces whatever code was pending for that address.
type VerificationService struct {
	verificationRepo repository.Repository
	rateLimiter      *redis_rate.Limiter
}

// challengeExpiredView maps the expiry-sweep view rows
type challengeExpiredView struct {
	TotalRows int64                 `json:"total_rows"`
	Offset    int64                 `json:"offset"`
	Rows      []challengeExpiredRow `json:"rows"`
}

type challengeExpiredRow struct {
	ID      string `json:"id"`
	Expires int64  `json:"key"`   // key is the expiry timestamp
	Rev     string `json:"value"` // value is _rev which is needed for deletion
}

func NewVerificationService(dbSelector *repository.CouchDBSelector, env *types.Environment) *VerificationService {
	db, err := dbSelector.ChooseDB(repository.VerificationChallenge)
	if err != nil {
		panic(err)
	}
	return &VerificationService{
		verificationRepo: db,
		rateLimiter:      redis_rate.NewLimiter(env.RedisClient),
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// IssueCode creates a fresh 6 digit challenge for the email. At most
// Verification.MaxPerHour codes are issued per address per hour; beyond that
// ErrTooManyRequests is returned.
func (vs *VerificationService) IssueCode(ctx context.Context, email string) (*types.VerificationChallenge, error) {
	digest, dErr := util.ScryptEmail(email)
	if dErr != nil {
		return nil, dErr
	}

	limit := redis_rate.PerHour(global.Conf.Verification.MaxPerHour)
	res, rlErr := vs.rateLimiter.Allow(ctx, "verification:"+digest, limit)
	if rlErr != nil {
		level.Error(global.Logger).Log("msg", "verification rate limiter failed", "error", rlErr)
		return nil, types.ErrInternal
	}
	if res.Allowed == 0 {
		return nil, types.ErrTooManyRequests
	}

	code, cErr := generateCode()
	if cErr != nil {
		return nil, cErr
	}

	now := util.GetTimestamp()
	challenge := &types.VerificationChallenge{
		Email:   email,
		Code:    code,
		Created: now,
		Expires: now + int64(global.Conf.Verification.CodeTTLMin)*60*1000,
	}

	sErr := vs.verificationRepo.Save(ctx, digest, challenge)
	if sErr == types.ErrConflict {
		// a pending challenge exists; replace it
		existing, gErr := vs.getByDigest(ctx, digest)
		if gErr != nil {
			return nil, gErr
		}
		challenge.BaseDocument = existing.BaseDocument
		sErr = vs.verificationRepo.Update(ctx, digest, challenge)
	}
	if sErr != nil {
		return nil, sErr
	}
	return challenge, nil
}

// ConsumeCode validates and burns a challenge. Any mismatch, expiry or reuse
// yields ErrVerificationFailed; the caller cannot distinguish the cases.
func (vs *VerificationService) ConsumeCode(ctx context.Context, email string, code string) error {
	digest, dErr := util.ScryptEmail(email)
	if dErr != nil {
		return dErr
	}

	challenge, gErr := vs.getByDigest(ctx, digest)
	if gErr != nil {
		if gErr == types.ErrNotFound {
			return types.ErrVerificationFailed
		}
		return gErr
	}
	if challenge.Consumed || challenge.Code != code {
		return types.ErrVerificationFailed
	}
	if util.GetTimestamp() > challenge.Expires {
		return types.ErrVerificationFailed
	}

	challenge.Consumed = true
	if uErr := vs.verificationRepo.Update(ctx, digest, challenge); uErr != nil {
		return uErr
	}
	return nil
}

func (vs *VerificationService) getByDigest(ctx context.Context, digest string) (*types.VerificationChallenge, error) {
	response, gErr := vs.verificationRepo.GetByID(ctx, digest)
	if gErr != nil {
		return nil, gErr
	}
	var existing types.VerificationChallenge
	if mErr := repository.MapToObject(response, &existing); mErr != nil {
		return nil, mErr
	}
	return &existing, nil
}

// RemoveExpiredChallenges loops and bulk deletes expired challenges until the
// expiry view drains. Run from the maintenance cron.
func (vs *VerificationService) RemoveExpiredChallenges() {
	totalRows := int64(1) // start value to enter the loop
	for totalRows > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		now := util.GetTimestamp()
		query := fmt.Sprintf("_design/verification/_view/expired?descending=true&startkey=%d&limit=100", now)
		response, err := vs.verificationRepo.GetByID(ctx, query)
		if err != nil {
			global.Logger.Log("msg", "error getting expired challenges", "error", err.Error())
			return
		}

		var expired challengeExpiredView
		mErr := repository.MapToObject(response, &expired)
		if mErr != nil {
			global.Logger.Log("msg", "error mapping expired challenges", "error", mErr.Error())
			return
		}
		if len(expired.Rows) > 0 {
			bulkDelete := []types.BaseDocument{}
			for _, doc := range expired.Rows {
				bulkDelete = append(bulkDelete, types.BaseDocument{
					UnderscoreID:  doc.ID,
					UnderscoreRev: doc.Rev,
					Deleted:       true,
				})
			}
			bulkDeleteDocument := map[string]interface{}{
				"docs": bulkDelete,
			}
			c := vs.verificationRepo.GetClient().(*resty.Client)
			resp, bulkErr := c.R().SetContext(ctx).SetBody(bulkDeleteDocument).Post(fmt.Sprintf("%s/_bulk_docs", vs.verificationRepo.GetDBName()))
			if bulkErr != nil || resp.IsError() {
				level.Error(global.Logger).Log("msg", "error deleting expired challenges", "error", bulkErr)
				return
			}
		}
		totalRows = int64(len(expired.Rows))
	}
}
