package apiroutes

import (
	"github.com/gin-gonic/gin"
	"github.com/keyrelay/go-keyrelay-server/api"
	restinterceptors "github.com/keyrelay/go-keyrelay-server/api/interceptors"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/metrics"
	"github.com/keyrelay/go-keyrelay-server/ratelimit"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// REST API routes
func ConfigRoutes(router *gin.Engine, dbSelector *repository.CouchDBSelector, limiter *ratelimit.Limiter, env *types.Environment) *gin.Engine {
	// init metrics
	if global.Conf.Prometheus.Enabled {

		metrics.InitMetrics()

		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// SERVICE definitions
	walletService := services.NewWalletService(dbSelector)
	aliasService := services.NewAliasService(dbSelector)
	verificationService := services.NewVerificationService(dbSelector, env)
	captchaService := services.NewCaptchaService()
	notifierService := services.NewNotifierService()
	relayService := services.NewRelayService(dbSelector, aliasService, notifierService)

	// API definitions
	walletApi := api.NewWalletApi(walletService, verificationService, captchaService, notifierService)
	aliasApi := api.NewAliasApi(aliasService, walletService)
	webhookApi := api.NewMailReceiveWebhook(relayService, env)
	healthApi := api.NewHealthCheckAPI()

	// PUBLIC API (reads, not throttled beyond metrics)
	publicApi := router.Group("/api", metrics.MetricsMiddleware())
	{
		publicApi.GET("/v1/healthcheck", healthApi.HealthCheck)
		publicApi.GET("/v1/wallet/lookup", walletApi.Lookup)
	}

	// ISSUANCE API (shared per-client budget across all issuance endpoints)
	issuanceApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware(limiter))
	{
		issuanceApi.POST("/v1/wallet", walletApi.Mint)
		issuanceApi.POST("/v1/wallet/resend", walletApi.Resend)
		issuanceApi.POST("/v1/verification", walletApi.SendVerificationCode)
		issuanceApi.POST("/v1/alias", aliasApi.Claim)
	}

	// provider webhook (authenticated by its signature, not rate limited)
	webhooks := router.Group("/webhook", metrics.MetricsMiddleware())
	{
		webhooks.POST("/mailgun", webhookApi.ReceiveMail)
	}

	// keep the limiter map from growing unbounded
	env.Cron.AddFunc("@every 10m", limiter.Prune)
	env.Cron.Start()

	return router
}
