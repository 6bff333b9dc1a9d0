package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middlewares for the REST API
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// size of the body for REST APIs
	requestSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_request_size_kilobytes",
			Help:    "REST API request size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	responseSizeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_size_kilobytes",
			Help:    "REST API response size distributions",
			Buckets: []float64{200, 500, 900, 1500, 2000, 3000, 4000, 5000},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})

	// Number of wallets minted
	WalletsMintedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallets_minted_total",
		Help: "The total number of wallet credentials minted",
	})

	// Number of disclosure emails sent (first sends and resends)
	DisclosuresSentMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "disclosure_emails_sent_total",
		Help: "The total number of disclosure emails sent",
	})

	// Number of aliases claimed
	AliasesClaimedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aliases_claimed_total",
		Help: "The total number of aliases claimed",
	})

	// Number of verification codes issued
	VerificationCodesIssuedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verification_codes_issued_total",
		Help: "The total number of verification codes issued",
	})

	// Number of inbound relay messages received
	RelayMessagesReceivedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_received_total",
		Help: "The total number of inbound relay messages received",
	})

	// Number of inbound relay messages successfully forwarded
	RelayMessagesForwardedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_forwarded_total",
		Help: "The total number of inbound relay messages forwarded",
	})

	// Latency of the full mint flow (keygen, persist, disclose)
	WalletMintProcessingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_mint_processing_latency_milliseconds",
		Help:    "Latency of wallet mint processing",
		Buckets: prometheus.LinearBuckets(1, 100, 10),
	})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(WalletsMintedMetricsCount)
		prometheus.MustRegister(DisclosuresSentMetricsCount)
		prometheus.MustRegister(AliasesClaimedMetricsCount)
		prometheus.MustRegister(VerificationCodesIssuedMetricsCount)
		prometheus.MustRegister(RelayMessagesReceivedMetricsCount)
		prometheus.MustRegister(RelayMessagesForwardedMetricsCount)
		prometheus.MustRegister(WalletMintProcessingLatency)
		prometheus.MustRegister(requestSizeRESTAPI)
		prometheus.MustRegister(responseSizeRESTAPI)
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		r := c.Request
		w := c.Writer

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// after request

		// observe request size in kilobytes
		if r.ContentLength > 0 {
			requestSizeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(r.ContentLength) / 1024)
		}

		// set response size
		if w.Size() > 0 {
			responseSizeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(w.Size()) / 1024)
		}

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(latency.Milliseconds()))
	}
}
