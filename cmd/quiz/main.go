package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quizpad/internal/client"
	"quizpad/internal/config"
	"quizpad/internal/console"
	"quizpad/internal/r2"
	"quizpad/internal/session"
	"quizpad/internal/storage"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	cfg, err := config.ParseClient(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(client.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	c.SetSessionCookie(cfg.SessionName, cfg.SessionCookie)
	if err := c.Prime(ctx); err != nil {
		log.Printf("WARN: Could not fetch CSRF token from %s: %v", cfg.BaseURL, err)
	}

	var saver session.Saver
	switch cfg.ExportTarget {
	case config.ExportR2:
		r2Saver, err := r2.NewSaver(ctx, cfg.R2)
		if err != nil || r2Saver == nil {
			log.Fatalf("FATAL: R2 export unavailable: %v", err)
		}
		saver = r2Saver
	default:
		fsSaver, err := storage.NewFSSaver(cfg.ExportDir)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		saver = fsSaver
	}

	ui := console.New(os.Stdout, console.Defaults{Count: cfg.Count, Difficulty: cfg.Difficulty})
	sess := session.New(c,
		session.WithExporter(c),
		session.WithSaver(saver),
		session.WithObserver(ui),
	)
	ui.Attach(sess)

	log.Printf("INFO: Connected to %s", cfg.BaseURL)
	if err := ui.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}
