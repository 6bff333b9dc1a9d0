package main

import (
	"errors"
	"strconv"

	"github.com/keyrelay/go-keyrelay-server/global"
	"github.com/keyrelay/go-keyrelay-server/mailer"
	"github.com/keyrelay/go-keyrelay-server/repository"
	"github.com/keyrelay/go-keyrelay-server/services"
	"github.com/keyrelay/go-keyrelay-server/types"
)

// Register external modules that implement the mail handler
func RegisterMailHandlers(conf *global.Config) {
	// currently only mailgun
	if conf.Mail.Provider == mailer.HandlerMailgun {
		handler := mailer.NewMailgunHandler(conf.Mail.Domain, conf.Mail.SendApiKey, conf.Mail.WebhookSigningKey)
		mailer.RegisterHandler(mailer.HandlerMailgun, handler)
	}
}

// Configure DB Repositories and create DB Selector
func ConfigDBSelector() *repository.CouchDBSelector {
	// configure Repository (couchDB)
	repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
	walletRepo, walletRepoErr := repository.NewCouchDBRepository(repoUrl, repository.Wallet, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	aliasRepo, aliasRepoErr := repository.NewCouchDBRepository(repoUrl, repository.Alias, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	messageRepo, messageRepoErr := repository.NewCouchDBRepository(repoUrl, repository.InboundMessage, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	verificationRepo, verificationRepoErr := repository.NewCouchDBRepository(repoUrl, repository.VerificationChallenge, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)

	repoErr := errors.Join(walletRepoErr, aliasRepoErr, messageRepoErr, verificationRepoErr)
	if repoErr != nil {
		global.Logger.Log("error", "Failed to create repositories", "error", repoErr.Error())
		panic(repoErr)
	}

	// REPOSITORY definitions
	dbSelector := repository.NewCouchDBSelector()
	dbSelector.AddDB(walletRepo)
	dbSelector.AddDB(aliasRepo)
	dbSelector.AddDB(messageRepo)
	dbSelector.AddDB(verificationRepo)

	return dbSelector
}

func ConfigDBIndexing(dbSelector *repository.CouchDBSelector, environment *types.Environment) {
	// CREATE REQUIRED SERVICES
	verificationService := services.NewVerificationService(dbSelector, environment)

	// Create INDEXES
	walletRepo, wErr := dbSelector.ChooseDB(repository.Wallet)
	if wErr != nil {
		panic(wErr)
	}
	aliasRepo, aErr := dbSelector.ChooseDB(repository.Alias)
	if aErr != nil {
		panic(aErr)
	}

	if iErr := repository.CreateWalletPublicKeyIndex(walletRepo); iErr != nil {
		panic(iErr)
	}
	if iErr := repository.CreateAliasWalletIndex(aliasRepo); iErr != nil {
		panic(iErr)
	}

	// Create DESIGN DOCUMENTS
	// a view over verification challenges by expiry so the sweeper can drain them
	repository.CreateDesign_DeleteExpiredRecordsByExpiry(repository.VerificationChallenge, "verification", "expired")
	repository.CreateDesign_CountByAliasHandle(repository.InboundMessage, "inbound", "byhandle")

	// cron jobs
	environment.Cron.AddFunc("@every 5m", verificationService.RemoveExpiredChallenges) // remove expired challenges every 5 minutes
	environment.Cron.Start()
	go verificationService.RemoveExpiredChallenges() // run once on startup
}
