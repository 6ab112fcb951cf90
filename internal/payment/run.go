package payment

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"orderhub/internal/hub"
	database "orderhub/internal/order/adapter/db"
	"orderhub/internal/order/app/services"
	"orderhub/internal/xpkg/config"
	pg "orderhub/internal/xpkg/db"
	apperrors "orderhub/internal/xpkg/errors"
	"orderhub/internal/xpkg/logger"
	"orderhub/internal/xpkg/rabbitmq"
)

// Execute runs the payment consumer as its own process. It needs the
// shared postgres store; fan-out goes through the broker so running
// order-service instances still see the payment.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	fs := flag.NewFlagSet("payment-consumer", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	workers := fs.Int("workers", DefaultWorkers, "Concurrent payment confirmations")
	if err := fs.Parse(args); err != nil {
		return apperrors.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return apperrors.ErrHelp
	}
	if *workers <= 0 {
		return fmt.Errorf("number of workers must be positive: %d", *workers)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		mylog.Action("config_failed").Error("Failed to load config", err)
		return err
	}
	if err := validateConfig(cfg); err != nil {
		mylog.Action("config_failed").Error("Payment consumer cannot run with this config", err)
		return err
	}

	db, err := pg.Start(newCtx, cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return fmt.Errorf("%w: %v", apperrors.ErrDBConn, err)
	}
	defer db.Close()
	if err := db.EnsureSchema(newCtx); err != nil {
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	mq, err := rabbitmq.New(newCtx, cfg.RMQ, mylog, *workers)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return fmt.Errorf("%w: %v", apperrors.ErrRMQConn, err)
	}
	defer mq.Close()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	if err := mq.DeclareOrderEvents(); err != nil {
		return fmt.Errorf("declare order events exchange: %w", err)
	}

	repo := database.NewOrderRepo(db)
	orders := services.NewOrderService(repo, repo, hub.NewBrokerPublisher(mq), mylog)
	return NewConsumer(mq, orders, *workers, mylog).Run(newCtx)
}

// validateConfig rejects setups where payments would be recorded but
// never reach order-service instances.
func validateConfig(cfg *config.Config) error {
	if cfg.Storage != config.StoragePostgres {
		return errors.New("payment consumer needs postgres storage")
	}
	if !cfg.Hub.Broker {
		return errors.New("payment consumer needs hub.broker: payment_updated events only reach order-service instances through the broker")
	}
	return nil
}
