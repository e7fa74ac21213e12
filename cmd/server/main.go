package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"meetpin/impl/auth"
	"meetpin/impl/core"
	"meetpin/internal/admission"
	"meetpin/internal/config"
	"meetpin/internal/database"
	"meetpin/internal/dynconf"
	"meetpin/internal/http-server/api"
	"meetpin/internal/identity"
	"meetpin/internal/notify"
	"meetpin/internal/passcode"
	pinmgr "meetpin/internal/pin"
	"meetpin/lib/logger"
	"meetpin/lib/sl"
)

const logFileName = "meetpin.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	log.Info("starting meetpin", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Error("mongo is disabled in configuration")
		os.Exit(1)
	}

	var directory pinmgr.Directory
	if conf.Identity.Enabled {
		identityClient, err := identity.NewSQLClient(conf, log)
		if err != nil {
			log.Error("identity client", sl.Err(err))
			os.Exit(1)
		}
		defer identityClient.Close()
		directory = identityClient
	} else {
		log.Info("identity client disabled; pin create/reclaim/recreate unavailable")
	}

	features := dynconf.New(db, conf.Features.RefreshSeconds, log)
	generator := passcode.NewGenerator(db, log)
	manager := pinmgr.NewManager(db, db, directory, features, generator, log)
	parser := passcode.NewParser(manager, log)
	engine := admission.New(parser, manager, features, db, db, db, log)

	notifier, err := notify.NewTelegram(conf, log)
	if err != nil {
		log.Error("telegram notifier", sl.Err(err))
		os.Exit(1)
	}
	if notifier != nil {
		engine.SetNotifier(notifier)
	}

	c := core.New(manager, engine, log)
	c.SetAuthService(auth.New(db))
	c.SetDialInService(generator)

	if err = api.New(conf, log, c); err != nil {
		log.Error("api server stopped", sl.Err(err))
		os.Exit(1)
	}
}
