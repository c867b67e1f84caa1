package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sparkswap/sparkbot/internal/controlplane/server"
	"github.com/sparkswap/sparkbot/internal/execution"
	"github.com/sparkswap/sparkbot/internal/hedge"
	"github.com/sparkswap/sparkbot/internal/ports"
	"github.com/sparkswap/sparkbot/internal/quote"
	"github.com/sparkswap/sparkbot/internal/services"
	"github.com/sparkswap/sparkbot/internal/sizing"
	"github.com/sparkswap/sparkbot/internal/venue/broker"
	"github.com/sparkswap/sparkbot/internal/venue/gdax"
	"github.com/sparkswap/sparkbot/internal/venue/paper"
	"github.com/sparkswap/sparkbot/pkg/config"
	"github.com/sparkswap/sparkbot/pkg/logger"
	"github.com/sparkswap/sparkbot/pkg/shutdown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("2"))

	brandStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))
)

func banner(cfg *config.Config) string {
	lines := []string{
		titleStyle.Render("Starting sparkbot, the ") + brandStyle.Render("Sparkswap") + titleStyle.Render(" Trading Bot"),
		dimStyle.Render("Watching markets: " + strings.Join(cfg.MarketNames(), ", ")),
		dimStyle.Render(fmt.Sprintf("Interval %s, placement margin %s, fill margin %s, order size (%s, %s]",
			cfg.Interval, cfg.PlacementMargin, cfg.FillMargin, cfg.MinOrderSize, cfg.MaxOrderSize)),
	}
	if cfg.DryRun {
		lines = append(lines, warnStyle.Render("DRY RUN: orders and hedges are only logged"))
	}
	return strings.Join(lines, "\n")
}

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json），为空则只使用环境变量")
	envFile := flag.String("env", ".env", ".env 文件路径（不存在时忽略）")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(banner(cfg))

	rt, err := buildRuntime(cfg)
	if err != nil {
		logrus.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	sched, err := services.NewScheduler(rt)
	if err != nil {
		logrus.Errorf("startup failed: %v", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	shutdownManager := shutdown.NewManager()

	if cfg.StatusAddr != "" {
		statusSrv, err := server.New(server.Config{
			Addr:    cfg.StatusAddr,
			Markets: cfg.MarketNames(),
			DryRun:  cfg.DryRun,
		}, rt.Outcomes)
		if err != nil {
			logrus.Errorf("status server: %v", err)
			os.Exit(1)
		}
		statusSrv.Start()
		shutdownManager.Register("status_server", statusSrv.Shutdown)
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(rootCtx)
	}()
	shutdownManager.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-schedDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("received stop signal, shutting down...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownManager.Shutdown(ctx); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}
	logrus.Info("sparkbot stopped")
}

func buildRuntime(cfg *config.Config) (*services.Runtime, error) {
	products := make(map[string]gdax.Product, len(cfg.Exchange.Products))
	for name, p := range cfg.Exchange.Products {
		products[name] = gdax.Product{ID: p.ProductID, Inverted: p.Inverted}
	}
	exchange, err := gdax.New(gdax.Config{
		APIURL:     cfg.Exchange.APIURL,
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		Passphrase: cfg.Exchange.Passphrase,
		RateLimit:  cfg.Exchange.RateLimit,
		Timeout:    cfg.CallTimeout,
		Products:   products,
	})
	if err != nil {
		return nil, err
	}

	brokerClient, err := broker.New(broker.Config{
		Address:     cfg.Broker.RPCAddress,
		CertPath:    cfg.Broker.CertPath,
		DisableAuth: cfg.Broker.DisableAuth,
		User:        cfg.Broker.User,
		Pass:        cfg.Broker.Pass,
		RateLimit:   cfg.Broker.RateLimit,
		Timeout:     cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	var (
		orders    ports.OrderGateway = brokerClient
		hedgeGate ports.HedgeGateway = exchange
	)
	if cfg.DryRun {
		orders = paper.NewOrderBook()
		hedgeGate = paper.NewHedger()
	}

	engine := quote.NewEngine(exchange, cfg.CallTimeout)
	return &services.Runtime{
		Quotes: engine,
		Sizer: sizing.NewSizer(brokerClient, sizing.Limits{
			GlobalMax: cfg.MaxOrderSize,
			GlobalMin: cfg.MinOrderSize,
		}, cfg.CallTimeout),
		Orders:   execution.NewManager(orders, cfg.CallTimeout),
		Hedger:   hedge.NewHedger(engine, hedgeGate, cfg.FillMargin, cfg.CallTimeout),
		Outcomes: services.NewOutcomes(),
		Params: services.Params{
			Markets:         cfg.Markets,
			PlacementMargin: cfg.PlacementMargin,
			FillMargin:      cfg.FillMargin,
			Interval:        cfg.Interval,
		},
	}, nil
}
