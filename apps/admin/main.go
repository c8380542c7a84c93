package main

import (
	"log"
	"os"

	"github.com/bitdevs/estudos/apps/shared"
	"github.com/bitdevs/estudos/core"
	logsvc "github.com/bitdevs/estudos/services/logger"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.LoadConfig()
	if err != nil {
		std.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	stack, err := shared.NewStack(conf, logger)
	if err != nil {
		logger.Fatal("setting up services", err)
	}

	// start CLI
	cli := commandLine{
		usrSvc:     stack.UserSvc,
		actSvc:     stack.ActivitySvc,
		classifier: stack.Classifier,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
