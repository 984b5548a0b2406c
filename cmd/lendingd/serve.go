package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/docstore/oteladapters"
	"github.com/openshelf/lending-engine-go/docstore/postgresengine"
	"github.com/openshelf/lending-engine-go/docstore/sqliteengine"
	"github.com/openshelf/lending-engine-go/httpapi"
	"github.com/openshelf/lending-engine-go/lending/fines"
	"github.com/openshelf/lending-engine-go/lending/inventory"
	"github.com/openshelf/lending-engine-go/lending/ledger"
	"github.com/openshelf/lending-engine-go/lending/requests"
	"github.com/openshelf/lending-engine-go/lending/settings"
	"github.com/openshelf/lending-engine-go/messaging"
)

// changeFeedStore is what serve needs from an engine: documents plus the
// committed-write feed the settings cache subscribes to.
type changeFeedStore interface {
	docstore.Store
	docstore.ChangeFeed
}

func serveCmd(config *serverConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lending HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, config)
		},
	}

	cmd.Flags().StringVar(&config.listenAddress, "listen", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&config.amqpURL, "amqp-url", "", "RabbitMQ URL for event publishing (empty disables it)")

	return cmd
}

func serve(cmd *cobra.Command, config *serverConfig) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	store, cleanup, err := openStore(cmd, config)
	if err != nil {
		return err
	}
	defer cleanup()

	provider, err := settings.BuildProvider(store, settings.WithChangeFeed(store))
	if err != nil {
		return err
	}
	defer provider.Close()

	inv, err := inventory.BuildStore(store, inventory.WithLogger(logger))
	if err != nil {
		return err
	}

	processor, err := requests.BuildProcessor(store, provider, requests.WithLogger(logger))
	if err != nil {
		return err
	}

	ledgerOptions := []ledger.Option{ledger.WithLogger(logger)}

	var amqpConn *amqp.Connection
	if config.amqpURL != "" {
		amqpConn, err = amqp.Dial(config.amqpURL)
		if err != nil {
			return fmt.Errorf("connecting to rabbitmq: %w", err)
		}
		defer amqpConn.Close()

		publisher, err := messaging.BuildPublisher(amqpConn, messaging.WithLogger(logger))
		if err != nil {
			return err
		}
		defer publisher.Close()

		ledgerOptions = append(ledgerOptions, ledger.WithPublisher(publisher))
	}

	lgr, err := ledger.BuildLedger(store, provider, ledgerOptions...)
	if err != nil {
		return err
	}

	engine, err := fines.BuildEngine(store, fines.WithLogger(logger))
	if err != nil {
		return err
	}

	server, err := httpapi.BuildServer(httpapi.Components{
		Inventory: inv,
		Requests:  processor,
		Ledger:    lgr,
		Fines:     engine,
		Settings:  provider,
	}, httpapi.WithLogger(logger))
	if err != nil {
		return err
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")

		if err := server.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("lending engine listening", "address", config.listenAddress, "driver", config.storageDriver)

	return server.Listen(config.listenAddress)
}

func openStore(cmd *cobra.Command, config *serverConfig) (changeFeedStore, func(), error) {
	switch config.storageDriver {
	case driverPostgres:
		pool, err := pgxpool.New(cmd.Context(), config.postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}

		store, err := postgresengine.NewDocumentStoreFromPGXPool(pool,
			postgresengine.WithTableName(config.tableName),
			postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("docstore")),
			postgresengine.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("lending-engine"))),
			postgresengine.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("lending-engine"))),
		)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return store, pool.Close, nil

	case driverSQLite:
		db, err := openSQLite(config.sqlitePath)
		if err != nil {
			return nil, nil, err
		}

		store, err := sqliteengine.NewDocumentStore(db, sqliteengine.WithTableName(config.tableName))
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return store, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", config.storageDriver)
	}
}
