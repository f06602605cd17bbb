package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/autoserviceai/chatd/internal/ai"
	"github.com/autoserviceai/chatd/internal/bus"
	"github.com/autoserviceai/chatd/internal/chat"
	"github.com/autoserviceai/chatd/internal/config"
	"github.com/autoserviceai/chatd/internal/httpapi"
	"github.com/autoserviceai/chatd/internal/notify"
	"github.com/autoserviceai/chatd/internal/store"
	"github.com/autoserviceai/chatd/internal/sweep"
	"github.com/autoserviceai/chatd/internal/ticket"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("chatd v%s\n", version)
	case "serve":
		if err := serve(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("chatd - customer support chat backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  chatd serve     Start the server")
	fmt.Println("  chatd version   Show version info")
}

func serve() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	home := config.ResolveHome()
	slog.Info("chatd starting", "version", version, "home", home)

	cfgPath := config.ResolveConfigPath("")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}
	config.Set(cfg)

	for _, dir := range []string{cfg.Server.DataDir, config.DocumentsDir(cfg.Server.DataDir), config.LogsDir()} {
		os.MkdirAll(dir, 0755)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	anon, aiUser, err := st.EnsureSentinels()
	if err != nil {
		return fmt.Errorf("ensure sentinel users: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutdown signal received", "signal", sig)
		cancel()
	}()

	go config.Watch(ctx)

	senders := []notify.Sender{
		notify.NewEmailSender(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.From),
	}
	if cfg.Notify.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange)
		if err != nil {
			slog.Warn("amqp publisher unavailable", "error", err)
		} else {
			defer pub.Close()
			senders = append(senders, pub)
		}
	}
	notifier := notify.NewNotifier(st, senders...)
	go notifier.Run(ctx)

	var aiClient *ai.Client
	if cfg.Autopilot.URL != "" {
		aiClient = ai.NewClient(cfg.Autopilot.URL, cfg.Autopilot.APIKey)
	}

	var whatsapp, telegram notify.OutboundSender
	if cfg.WhatsApp.NumberID != "" {
		whatsapp = notify.NewWhatsAppSender(cfg.WhatsApp.NumberID, cfg.WhatsApp.AccessToken)
	}
	if cfg.Telegram.Token != "" {
		telegram = notify.NewTelegramSender(cfg.Telegram.Token)
	}

	hub := bus.NewHub()
	svc := &chat.Service{
		Store:       st,
		Hub:         hub,
		Notifier:    notifier,
		AI:          aiClient,
		AIUser:      aiUser,
		ContextSize: cfg.Autopilot.ContextSize,
		Anonymous:   anon,
		WhatsApp:    whatsapp,
		Telegram:    telegram,
	}

	tickets := ticket.NewRegistry(ticket.DefaultTTL)
	resets := ticket.NewRegistry(0)

	sweeper := sweep.New(st, tickets)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	srv := httpapi.NewServer(st, tickets, resets, hub, svc, notifier)
	return srv.Start(ctx)
}
