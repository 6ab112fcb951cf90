package syncagent

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/config"
	apperrors "orderhub/internal/xpkg/errors"
	"orderhub/internal/xpkg/logger"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// Execute runs a sync agent for one outlet or one user against a running
// order service. With --board the cache is shown as a live terminal view.
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	fs := flag.NewFlagSet("sync-agent", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	kind := fs.String("scope", string(ScopeOutlet), "outlet | user")
	id := fs.String("id", "", "outlet or user id to follow")
	token := fs.String("token", "", "bearer token, overrides agent.token")
	board := fs.Bool("board", false, "Show the orders as a terminal board")
	if err := fs.Parse(args); err != nil {
		return apperrors.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return apperrors.ErrHelp
	}

	scope := Scope{Kind: ScopeKind(*kind), ID: *id}
	if !scope.Valid() {
		return fmt.Errorf("%w: --scope must be outlet or user and --id is required", ErrInvalidScope)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		mylog.Action("config_failed").Error("Failed to load config", err)
		return err
	}
	if *token == "" {
		*token = cfg.Agent.Token
	}

	mylog = mylog.With("scope", scope.Key())
	client := NewAPIClient(cfg.Agent.BaseURL, *token, nil)

	var program *tea.Program
	onChange := func(orders []models.Order) {
		mylog.Action("cache_changed").Info("Orders updated", "orders", len(orders))
	}
	if *board {
		program = tea.NewProgram(NewBoard(fmt.Sprintf("%s %s", scope.Kind, scope.ID)), tea.WithAltScreen(), tea.WithContext(newCtx))
		onChange = func(orders []models.Order) {
			program.Send(OrdersMsg(orders))
		}
		// the board owns the terminal
		mylog = logger.Nop()
	}

	agent, err := New(scope, client, client,
		WithPersister(NewFileStore(cfg.Agent.StateDir)),
		WithRefetchInterval(cfg.Agent.RefetchInterval),
		WithOnChange(onChange),
		WithLogger(mylog),
	)
	if err != nil {
		return err
	}
	transport := NewWSTransport(cfg.Agent.BaseURL, *token, []string{scope.Topic()}, mylog)

	runCtx, cancel := context.WithCancel(newCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return agent.Run(gctx) })
	g.Go(func() error { return transport.Run(gctx, agent) })

	if program != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		})
	}

	mylog.Action("sync_agent_started").Info("Following orders", "base_url", cfg.Agent.BaseURL)
	return g.Wait()
}
