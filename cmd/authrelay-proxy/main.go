package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"authrelay/internal/config"
	"authrelay/internal/logging"
	"authrelay/internal/proxy"
)

func main() {
	if err := logging.LoadLevel(); err != nil {
		logrus.WithError(err).Warn("failed to load log level")
	}

	conf, err := config.LoadProxy()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	creds, err := config.LoadCredentials(conf.Credentials.File)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load credentials")
	}
	logrus.WithFields(logrus.Fields{
		"clientID": creds.Redacted(),
		"addr":     conf.Server.Addr,
	}).Info("credentials loaded, starting secret-injecting proxy")

	srv := proxy.New(conf, creds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("proxy server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("failed to shut down cleanly")
	}
}
