package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/bitdevs/estudos/apps/api/echo"
	"github.com/bitdevs/estudos/apps/shared"
	"github.com/bitdevs/estudos/core"
	logsvc "github.com/bitdevs/estudos/services/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// =========================================================================
	// Set up Dependencies

	conf, err := core.LoadConfig()
	if err != nil {
		std.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	stack, err := shared.NewStack(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up services: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if _, err := stack.UserSvc.EnsureDefaultAdmin(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("creating default admin: %v", err), err)
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Deps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     stack.UserSvc,
		ActivitySvc: stack.ActivitySvc,
		Files:       stack.Files,
		Validate:    stack.Validate,
		Translator:  stack.Translator,
	})
	go server.Start()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
