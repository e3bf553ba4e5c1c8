package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/transport/live"
	"github.com/parleyhq/parley/internal/transport/sse"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "parley.jsonc", "Path to configuration file")
	modeFlag := flag.String("mode", "sse", "Transport mode: sse or live")
	metricsAddr := flag.String("metrics", "", "Address for the metrics endpoint (empty disables)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("parley %s\n", Version)
		return
	}

	if err := run(*configPath, *modeFlag, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, modeFlag, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Log.Dir, cfg.Log.JSON); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Close() }()

	var mode session.Mode
	switch modeFlag {
	case "sse":
		mode = session.ModeStream
	case "live":
		mode = session.ModeLive
	default:
		return fmt.Errorf("unknown mode %q (want sse or live)", modeFlag)
	}

	store, err := history.Open(cfg.History.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sweeper := history.NewSweeper(store, cfg.Retention())
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Slog().Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	opts := []session.Option{session.WithHistory(store)}
	switch mode {
	case session.ModeStream:
		opts = append(opts, session.WithStreamClient(sse.New(
			cfg.Server.StreamURL,
			sse.WithMaxHistoryTurns(cfg.Transport.MaxHistoryTurns),
			sse.WithSizeThresholds(cfg.Transport.SoftPayloadBytes, cfg.Transport.HardPayloadBytes),
		)))
	case session.ModeLive:
		opts = append(opts, session.WithLiveFactory(live.NewFactory(
			cfg.Server.LiveURL,
			live.WithMaxHistoryTurns(cfg.Transport.MaxHistoryTurns),
			live.WithSizeThresholds(cfg.Transport.SoftPayloadBytes, cfg.Transport.HardPayloadBytes),
			live.WithPingInterval(cfg.PingInterval()),
		)))
	}

	s := session.New(mode, opts...)
	defer func() { _ = s.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Slog().Info("parley started",
		"version", Version, "mode", mode, "session_id", s.ID())
	fmt.Printf("parley %s (%s transport, session %s)\n", Version, mode, s.ID())

	return repl(ctx, s, mode)
}

// repl reads user input, submits turns, and walks any approval pauses
// until each turn completes.
func repl(ctx context.Context, s *session.Session, mode session.Mode) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return nil
		}

		if err := s.SendText(ctx, text); err != nil {
			fmt.Printf("send failed: %v\n", err)
			continue
		}
		if err := completeTurn(ctx, s, mode, scanner); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("turn failed: %v\n", err)
		}
		printLastTurn(s)
	}
}

// completeTurn drives the turn to completion, prompting for a decision
// at every approval pause.
func completeTurn(ctx context.Context, s *session.Session, mode session.Mode, scanner *bufio.Scanner) error {
	for {
		if mode == session.ModeLive {
			if err := s.Pump(ctx); err != nil {
				return err
			}
		}

		pending := pendingApproval(s)
		if pending == nil {
			return nil
		}

		confirmed, err := promptDecision(scanner, pending)
		if err != nil {
			return err
		}

		if pending.IsConfirmation() {
			if res := s.DispatchApproval(ctx, pending.ToolCallID, confirmed); !res.Success {
				return res.Err
			}
			continue
		}
		if err := s.AddToolApprovalResponse(ctx, chat.ApprovalResponse{
			ID:       pending.Approval.ID,
			Approved: confirmed,
		}); err != nil {
			return err
		}
	}
}

func pendingApproval(s *session.Session) *chat.Part {
	conv := s.Conversation()
	last := conv.LastTurn()
	for _, p := range chat.ExtractParts(last) {
		p := p
		if chat.IsApprovalRequested(&p) && p.Approval != nil {
			return &p
		}
	}
	return nil
}

func promptDecision(scanner *bufio.Scanner, part *chat.Part) (bool, error) {
	name := part.ToolName
	if orig, ok := part.OriginalCall(); ok {
		name = orig.Name
	}
	for {
		fmt.Printf("approve %s? [y/n] ", name)
		if !scanner.Scan() {
			return false, fmt.Errorf("input closed during approval prompt")
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func printLastTurn(s *session.Session) {
	conv := s.Conversation()
	last := conv.LastTurn()
	if last == nil || last.Role != chat.RoleAssistant {
		return
	}
	if last.Error != "" {
		fmt.Printf("[error] %s\n", last.Error)
	}
	for _, p := range last.Parts {
		switch p.Type {
		case chat.PartText:
			fmt.Println(p.Text)
		case chat.PartToolInvocation:
			fmt.Printf("[tool %s: %s]\n", p.ToolName, p.State)
		}
	}
}
