package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/keyrelay/go-keyrelay-server/apiroutes"
	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/ratelimit"
	"github.com/keyrelay/go-keyrelay-server/types"
	"github.com/redis/go-redis/v9"
)

func initRedisClient(conf global.Config) *redis.Client {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Host + ":" + strconv.Itoa(conf.Redis.Port),
		Username: conf.Redis.Username,
		Password: conf.Redis.Password,
		DB:       1,
	})

	// the per-email issuance counters restart clean with the process
	rCtx, rCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer rCancel()
	_ = redisClient.FlushDB(rCtx).Err()

	return redisClient
}

func newAPIRouter(conf *global.Config) *gin.Engine {
	if conf.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	return router
}

// @title Keyrelay Server API
// @version 1.0
// @description Issues custodial wallet credentials bound to email addresses and relays mail for public-key-derived aliases

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
func main() {
	var (
		configFile string
	)
	// configuration file optional path. Default: current dir with filename conf.yaml
	flag.StringVar(&configFile, "c", "conf.yaml", "Configuration file path.")
	flag.StringVar(&configFile, "config", "conf.yaml", "Configuration file path.")
	flag.Usage = usage
	flag.Parse()

	// loading configuration file
	err := global.NewYamlConfig(configFile, &global.Conf)
	if err != nil {
		global.Logger.Log(err, "conf.yaml failed to load")
		panic("Failed to load conf.yaml")
	}

	redisClient := initRedisClient(global.Conf)
	defer redisClient.Close()

	env := types.NewEnvironment(redisClient)
	defer env.Cron.Stop()

	// per-client issuance limiter, injected into the middleware so its
	// window state lives with the process
	limiter := ratelimit.NewLimiter(global.Conf.RateLimit.MaxRequests, time.Duration(global.Conf.RateLimit.WindowMinutes)*time.Minute)

	// init routing (for RESTful API endpoints)
	router := newAPIRouter(&global.Conf)

	dbSelector := ConfigDBSelector()
	ConfigDBIndexing(dbSelector, env)

	// register mail handlers from config
	RegisterMailHandlers(&global.Conf)

	// configure routes
	router = apiroutes.ConfigRoutes(router, dbSelector, limiter, env)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", global.Conf.Port),
		Handler: router,
	}

	// server wait to shutdown monitoring channels
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		global.Logger.Log("msg", "server shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if sErr := srv.Shutdown(ctx); sErr != nil {
			global.Logger.Log("msg", "forced shutdown", "error", sErr.Error())
		}
		close(done)
	}()

	global.Logger.Log("Server is ready to handle requests at", global.Conf.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("%v\n", err))
	}

	<-done
}

// usage will print out the flag options for the server.
func usage() {
	usageStr := `Usage: keyrelay-server [options]
	Server Options:
	-c, --config <file>              Configuration file path
`
	fmt.Printf("%s\n", usageStr)
	os.Exit(0)
}
