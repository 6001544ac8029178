package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
	emailsvc "github.com/restorank/restorank/services/email"
	filesvc "github.com/restorank/restorank/services/files"
	logsvc "github.com/restorank/restorank/services/logger"
	"github.com/restorank/restorank/storage"
	"github.com/restorank/restorank/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB; migrations are left to the migrate command
	st, err := storage.Open(conf, false)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	pics, err := filesvc.NewDiskStorage(conf.Upload.Dir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	restaurant.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		usrSvc:   user.NewService(st.Users, emailsvc.NewConsoleService(conf, logger), pics, logger, conf),
		restoSvc: restaurant.NewService(st.Restaurants, st.Tx, conf.Listing),
		validate: validate,
		out:      os.Stdout,
	}
	if st.DB != nil {
		cli.migrator = func(command string, args ...string) error {
			return database.Migrate(st.DB.DB, command, args...)
		}
	}

	err = cli.run(os.Args)
	if cerr := st.Close(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	logger.Wait()

	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
