package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/skedutech/portal/core"
	"github.com/skedutech/portal/core/franchise"
	emailsvc "github.com/skedutech/portal/services/email"
	logsvc "github.com/skedutech/portal/services/logger"
	"github.com/skedutech/portal/storage/database"
	sqlxrepos "github.com/skedutech/portal/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	franchise.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, appLogger)

	var mailSvc core.EmailService
	switch conf.EmailBackend {
	case "sendgrid":
		mailSvc = emailsvc.NewSendgridService(conf, appLogger)
	default:
		mailSvc = emailsvc.NewConsoleService(conf)
	}

	repo := sqlxrepos.NewFranchiseRepository(db)

	// start CLI
	cli := commandLine{
		db:       db,
		repo:     repo,
		svc:      franchise.NewService(repo, mailSvc, appLogger, conf),
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
