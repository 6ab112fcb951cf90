package order

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	cartmemory "orderhub/internal/cart/adapter/memory"
	cartmongo "orderhub/internal/cart/adapter/mongo"
	cartcore "orderhub/internal/cart/app/core"
	cartservices "orderhub/internal/cart/app/services"
	"orderhub/internal/hub"
	"orderhub/internal/order/adapter/memstore"
	"orderhub/internal/order/api/http"
	"orderhub/internal/order/api/http/handle"
	"orderhub/internal/order/app/core"
	"orderhub/internal/order/app/services"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/payment"
	"orderhub/internal/xpkg/config"
	apperrors "orderhub/internal/xpkg/errors"
	"orderhub/internal/xpkg/logger"
	"orderhub/internal/xpkg/mongo"
	"orderhub/internal/xpkg/rabbitmq"

	database "orderhub/internal/order/adapter/db"
	pg "orderhub/internal/xpkg/db"

	"golang.org/x/sync/errgroup"
)

type params struct {
	orderParams *core.OrderParams
	configPath  string
	payments    bool
	workers     int
	cfg         *config.Config
}

// Execute starts the order service: HTTP API, websocket fan-out and,
// when enabled, the broker bridge and payment consumer.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	params, err := parseParams(args)
	if err != nil {
		if !errors.Is(err, apperrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}
	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	app, err := build(newCtx, params, mylog)
	if err != nil {
		return err
	}
	defer app.close()

	g, gctx := errgroup.WithContext(newCtx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})
	if app.bridge != nil {
		g.Go(func() error {
			return app.bridge.Run(gctx)
		})
	}
	if app.payments != nil {
		g.Go(func() error {
			return app.payments.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		mylog.Action("order_service_failed").Error("Order service failed unexpectedly", err)
		return err
	}
	mylog.Action("server_stopped").Info("Order service exited normally")
	return nil
}

type app struct {
	server   *http.Server
	bridge   *hub.BrokerBridge
	payments *payment.Consumer
	closers  []func() error
	mylog    logger.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.mylog.Action("close_failed").Error("Failed to release resource", err)
		}
	}
}

func build(ctx context.Context, p *params, mylog logger.Logger) (*app, error) {
	cfg := p.cfg
	a := &app{mylog: mylog}
	probes := map[string]handle.Probe{}

	var (
		orderRepo core.IOrderRepo
		directory core.IDirectory
	)
	switch cfg.Storage {
	case config.StorageMemory:
		outlets := make([]models.OutletInfo, 0, len(cfg.Outlets))
		for _, o := range cfg.Outlets {
			outlets = append(outlets, models.OutletInfo{ID: o.ID, Name: o.Name, RestaurantID: o.RestaurantID, RestaurantName: o.RestaurantName})
		}
		store := memstore.New(outlets...)
		orderRepo, directory = store, store
	default:
		db, err := pg.Start(ctx, cfg.DB, mylog)
		if err != nil {
			mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
			return nil, fmt.Errorf("%w: %v", core.ErrDBConn, err)
		}
		a.closers = append(a.closers, db.Close)
		mylog.Action("db_connected").Info("Successful database connection")

		if err := db.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		if err := db.SeedOutlets(ctx, cfg.Outlets); err != nil {
			a.close()
			return nil, err
		}
		repo := database.NewOrderRepo(db)
		orderRepo, directory = repo, repo
		probes["postgres"] = db.IsAlive
	}

	h := hub.New(hub.WithLogger(mylog))
	var publisher core.IPublisher = hub.NewLocalPublisher(h)

	var mq *rabbitmq.RabbitMQ
	if cfg.Hub.Broker || p.payments {
		var err error
		mq, err = rabbitmq.New(ctx, cfg.RMQ, mylog, p.workers)
		if err != nil {
			mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
			a.close()
			return nil, fmt.Errorf("%w: %v", core.ErrRMQConn, err)
		}
		a.closers = append(a.closers, mq.Close)
		mylog.Action("mb_connected").Info("Successful message broker connection")
		probes["rabbitmq"] = func(context.Context) error { return mq.IsAlive() }

		if cfg.Hub.Broker {
			if err := mq.DeclareOrderEvents(); err != nil {
				a.close()
				return nil, fmt.Errorf("declare order events exchange: %w", err)
			}
			publisher = hub.NewBrokerPublisher(mq)
			a.bridge = hub.NewBrokerBridge(h, mq, mylog)
		}
	}

	orderService := services.NewOrderService(orderRepo, directory, publisher, mylog)
	if p.payments {
		a.payments = payment.NewConsumer(mq, orderService, p.workers, mylog)
	}

	var cartRepo cartcore.ICartRepo = cartmemory.NewCartRepo()
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			mylog.Action("mongo_connection_failed").Error("Failed to connect to mongo", err)
			a.close()
			return nil, fmt.Errorf("%w: %v", apperrors.ErrMongoConn, err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		mdb := client.Database(cfg.Mongo.Database)
		if err := mongo.EnsureCartIndexes(ctx, mdb); err != nil {
			a.close()
			return nil, err
		}
		cartRepo = cartmongo.NewCartRepo(mdb)
		probes["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		mylog.Action("mongo_connected").Info("Successful mongo connection")
	}

	a.server = http.NewServer(p.orderParams, http.Deps{
		Orders:     orderService,
		Carts:      cartservices.NewCartService(cartRepo, mylog),
		Hub:        h,
		SendBuffer: cfg.Hub.SendBuffer,
		JWTSecret:  cfg.Auth.JWTSecret,
		Probes:     probes,
	}, mylog)
	return a, nil
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("order-service", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", core.DefaultPort, "Port to run the order service")
	payments := fs.Bool("payments", false, "Consume payment confirmations from RabbitMQ")
	workers := fs.Int("workers", payment.DefaultWorkers, "Concurrent payment confirmations")

	if err := fs.Parse(args); err != nil {
		return nil, apperrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, apperrors.ErrHelp
	}

	return &params{
		orderParams: &core.OrderParams{Port: *port},
		configPath:  *configPath,
		payments:    *payments,
		workers:     *workers,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	if port := params.orderParams.Port; port <= 0 || port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", port)
	}
	if params.workers <= 0 {
		return fmt.Errorf("number of payment workers must be positive: %d", params.workers)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	return nil
}
