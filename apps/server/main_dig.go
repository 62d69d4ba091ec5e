package main

import (
	"expvar"
	"fmt"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/classroom/apps/server/di"
	echoapp "github.com/trezcool/classroom/apps/server/echo"
	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/account"
	logsvc "github.com/trezcool/classroom/services/logger"
)

func startWithDig() {
	c := di.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger *logsvc.RollbarLogger,
		dbLoggerParam di.DBLoggerParam,
		db *sqlx.DB,
		server echoapp.Server,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer logger.Sync()

		account.LoadCommonPasswords(logger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer logger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start App Server

		go func() {
			server.Start()
		}()

		waitForShutdown(conf, logger, server)
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
