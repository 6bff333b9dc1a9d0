package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyrelay/go-keyrelay-server/global"
)

type HealthCheckAPI struct {
}

func NewHealthCheckAPI() *HealthCheckAPI {
	return &HealthCheckAPI{}
}

func (ha *HealthCheckAPI) HealthCheck(c *gin.Context) {
	mode := global.Conf.Mode
	aliasDomain := global.Conf.Mail.AliasDomain
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode, "domain": aliasDomain})
}
