package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/metrics"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/keyrelay/go-keyrelay-server/util"
)

type AliasApi struct {
	aliasService  *services.AliasService
	walletService *services.WalletService
	validate      *validator.Validate
}

func NewAliasApi(aliasService *services.AliasService, walletService *services.WalletService) *AliasApi {
	return &AliasApi{
		aliasService:  aliasService,
		walletService: walletService,
		validate:      validator.New(),
	}
}

// Claim an alias
// @Summary Claim the mailbox alias derived from a wallet public key
// @Description Registers handle@aliasDomain forwarding to the wallet email. Claiming again returns the existing alias.
// @Tags Alias
// @Param claim body types.InputClaimAlias true "claim request"
// @Success 201 {object} types.OutputClaimAlias
// @Success 200 {object} types.OutputClaimAlias "already claimed"
// @Failure 400 {object} api.ApiError "invalid public key"
// @Failure 404 {object} api.ApiError "no wallet for this public key"
// @Failure 500 {object} api.ApiError "internal server error"
// @Accept json
// @Produce json
// @Router /api/v1/alias [post]
func (aa *AliasApi) Claim(c *gin.Context) {
	var input types.InputClaimAlias
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if vErr := aa.validate.Struct(input); vErr != nil {
		msg := ValidatorErrorToUser(vErr.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}
	if !util.IsWalletPublicKey(input.PublicKey) {
		ApiErrorf(c, http.StatusBadRequest, "invalid public key")
		return
	}

	walletRecord, wErr := aa.walletService.GetByPublicKey(c.Request.Context(), input.PublicKey)
	if wErr != nil {
		if wErr == types.ErrNotFound {
			ApiErrorf(c, http.StatusNotFound, "no wallet found for this public key")
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to look up wallet")
		return
	}

	account, existed, cErr := aa.aliasService.ClaimAlias(c.Request.Context(), walletRecord)
	if cErr != nil {
		global.Logger.Log("msg", "failed to claim alias", "error", cErr.Error())
		ApiErrorf(c, http.StatusInternalServerError, "failed to claim alias")
		return
	}

	if !existed {
		metrics.AliasesClaimedMetricsCount.Inc()
	}

	output := types.OutputClaimAlias{
		Alias:     fmt.Sprintf("%s@%s", account.Handle, global.Conf.Mail.AliasDomain),
		ForwardTo: account.ForwardTarget,
		Exists:    existed,
	}
	if existed {
		c.JSON(http.StatusOK, output)
		return
	}
	c.JSON(http.StatusCreated, output)
}
