package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/escrowd/internal/config"
	"github.com/tdex-network/escrowd/internal/core/application/escrow"
	"github.com/tdex-network/escrowd/internal/core/application/pubsub"
	"github.com/tdex-network/escrowd/internal/core/ports"
	gatewayinmemory "github.com/tdex-network/escrowd/internal/infrastructure/gateway/inmemory"
	gatewayws "github.com/tdex-network/escrowd/internal/infrastructure/gateway/websocket"
	"github.com/tdex-network/escrowd/internal/infrastructure/hasher"
	webhookpubsub "github.com/tdex-network/escrowd/internal/infrastructure/pubsub"
	dbbadger "github.com/tdex-network/escrowd/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/escrowd/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/tdex-network/escrowd/internal/interfaces/http"
	"github.com/tdex-network/escrowd/pkg/stats"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	logLevel := log.Level(config.GetInt(config.LogLevelKey))
	log.SetLevel(logLevel)

	h, err := hasher.NewHasher(config.GetString(config.HashFunctionKey))
	if err != nil {
		log.WithError(err).Fatal("invalid hash function")
	}

	repoManager, err := newRepoManager(logLevel)
	if err != nil {
		log.WithError(err).Fatal("failed to open escrow db")
	}

	gateway, err := newGateway()
	if err != nil {
		repoManager.Close()
		log.WithError(err).Fatal("failed to connect to funds gateway")
	}

	webhooks, err := webhookpubsub.NewService(
		config.GetDbDir(), config.GetSeconds(config.WebhookTimeoutKey),
	)
	if err != nil {
		gateway.Close()
		repoManager.Close()
		log.WithError(err).Fatal("failed to open webhooks db")
	}
	pubsubSvc := pubsub.NewService(webhooks)

	escrowSvc, err := escrow.NewService(
		repoManager, gateway, pubsubSvc, nil, h,
		config.GetString(config.OwnerKey),
		config.GetString(config.LocalDomainKey),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init escrow service")
	}

	httpSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Port:       config.GetInt(config.ListeningPortKey),
		AuthSecret: config.GetString(config.AuthSecretKey),
		EscrowSvc:  escrowSvc,
		WebhookSvc: pubsubSvc,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init http interface")
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	if interval := config.GetSeconds(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(ctx, interval, filepath.Join(
			config.GetDatadir(), config.ProfilerLocation, "metrics.txt",
		))
	}

	// Transfers staged before a restart are resolved straight away, then
	// periodically.
	wg.Add(1)
	go func() {
		defer wg.Done()
		escrowSvc.RunReconciler(ctx, config.GetSeconds(config.ReconcileIntervalKey))
	}()

	log.Debug("starting daemon")

	if err := httpSvc.Start(); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to start http interface")
	}

	log.Infof(
		"escrow daemon started with %s db, %s gateway and %s hash function",
		config.GetString(config.DBTypeKey),
		config.GetString(config.GatewayTypeKey),
		config.GetString(config.HashFunctionKey),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	<-sigChan

	log.Info("shutting down daemon")

	httpSvc.Stop()
	cancel()
	wg.Wait()

	gateway.Close()
	log.Debug("closed connection with funds gateway")

	pubsubSvc.Close()
	log.Debug("stopped webhook pubsub")

	repoManager.Close()
	log.Debug("closed connection with db")

	log.Info("exiting")
}

func newRepoManager(logLevel log.Level) (ports.RepoManager, error) {
	if config.GetString(config.DBTypeKey) == config.DBInmemory {
		return inmemory.NewRepoManager(), nil
	}

	// badger's logs are too verbose to be shown at levels other than debug.
	var dbLogger badger.Logger
	if logLevel >= log.DebugLevel {
		dbLogger = log.StandardLogger()
	}
	return dbbadger.NewRepoManager(config.GetDbDir(), dbLogger)
}

func newGateway() (ports.FundsGateway, error) {
	if config.GetString(config.GatewayTypeKey) == config.GatewayWebsocket {
		return gatewayws.NewGateway(
			config.GetString(config.GatewayAddrKey),
			config.GetInt(config.GatewayRateLimitKey),
			0,
		)
	}
	return gatewayinmemory.NewGateway(config.GetBool(config.GatewayAutoSettleKey)), nil
}
