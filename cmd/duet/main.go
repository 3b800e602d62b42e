// Duet CLI entry point.
//
// Duet runs a one-to-one audio/video call between two peers. The peers find
// each other through a small WebSocket relay that forwards signaling records;
// media then flows directly between them.
//
// The same binary runs the relay (-role relay) or a peer (-role peer). Without
// -role it asks interactively.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/duet/internal/config"
	"github.com/1ureka/duet/internal/event"
	"github.com/1ureka/duet/internal/media"
	"github.com/1ureka/duet/internal/presentation"
	"github.com/1ureka/duet/internal/relay"
	"github.com/1ureka/duet/internal/session"
	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/transport"
	"github.com/1ureka/duet/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := flag.String("config", "", "YAML config file")
	role := flag.String("role", "", "Role: relay or peer")
	host := flag.String("host", "", "Relay host to connect to (peer only)")
	port := flag.Int("port", 0, "Relay port (peer only)")
	tlsFlag := flag.Bool("tls", false, "Connect to the relay over wss (peer only)")
	listen := flag.String("listen", "", "Listen address (relay only)")
	stun := flag.String("stun", "", "Comma separated ICE server URLs (peer only)")
	timeout := flag.Duration("timeout", 0, "Abandon an unanswered offer after this long, 0 waits forever (peer only)")
	autoCall := flag.Bool("call", false, "Start a call as soon as the relay is reachable (peer only)")
	earlyMedia := flag.Bool("early-media", true, "Acquire capture on startup so incoming calls are answered with media (peer only)")
	noMedia := flag.Bool("no-media", false, "Run without capture devices (peer only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags override the config file only when given explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "role":
			cfg.Role = config.Role(*role)
		case "host":
			cfg.RelayHost = *host
		case "port":
			cfg.RelayPort = *port
		case "tls":
			cfg.TLS = *tlsFlag
		case "listen":
			cfg.ListenAddr = *listen
		case "stun":
			cfg.ICEServers = splitList(*stun)
		case "timeout":
			cfg.AnswerTimeout = *timeout
		case "call":
			cfg.AutoCall = *autoCall
		case "early-media":
			cfg.EarlyMedia = *earlyMedia
		case "no-media":
			cfg.NoMedia = *noMedia
		case "debug":
			cfg.Debug = *debugMode
		}
	})

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Duet — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		askRole(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	switch cfg.Role {
	case config.RoleRelay:
		runRelay(ctx, cfg)
	case config.RolePeer:
		runPeer(ctx, cfg)
	}

	util.LogInfo("successfully shut down")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runRelay serves the signaling relay until ctx is cancelled.
func runRelay(ctx context.Context, cfg config.Config) {
	srv := relay.NewServer(cfg.RelayPath, cfg.PingInterval)
	if err := srv.Start(cfg.ListenAddr); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogSuccess("relay listening on %s%s", srv.Addr(), cfg.RelayPath)

	<-ctx.Done()

	if err := srv.Close(); err != nil {
		util.LogWarning("failed to close relay: %v", err)
	}
}

// runPeer joins the relay and handles calls until ctx is cancelled.
func runPeer(ctx context.Context, cfg config.Config) {
	tr, err := transport.NewTransport(cfg.ICEServers)
	if err != nil {
		util.LogError("failed to create peer connection: %v", err)
		os.Exit(1)
	}
	defer tr.Close()

	ch := signaling.NewChannel(cfg.RelayURL())
	defer ch.Close()

	secure := cfg
	secure.TLS = true

	bridge := presentation.NewBridge(0)
	device := &media.Device{Secure: cfg.SecureContext(), Disabled: cfg.NoMedia}

	var (
		s    *session.Session
		once sync.Once
	)
	call := func() {
		if err := s.RequestCall(ctx); err != nil && !errors.Is(err, context.Canceled) {
			util.LogDebug("call request failed: %v", err)
		}
	}

	sink := event.Multi(bridge, event.SinkFunc(func(e event.Event) {
		// Published on the session loop; the call must not block it.
		if cfg.AutoCall && e.Kind == event.ChannelOpen {
			once.Do(func() { go call() })
		}
	}))

	s = session.New(ch, tr, device, session.Options{
		AnswerTimeout:  cfg.AnswerTimeout,
		EarlyMedia:     cfg.EarlyMedia && !cfg.NoMedia,
		SecureRelayURL: secure.RelayURL(),
		Sink:           sink,
	})

	util.LogInfo("connecting to relay %s", ch.URL())
	util.StartStatsReporter(ctx)

	if !cfg.AutoCall {
		util.LogInfo("press Enter to start a call")
		go readCalls(ctx, call)
	}

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		util.LogError("session stopped: %v", err)
		os.Exit(1)
	}
}

// readCalls requests a call on every line read from stdin.
func readCalls(ctx context.Context, call func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		go call()
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askRole fills in the role, and the relay host for peers, interactively.
func askRole(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Relay — Forward signaling between peers", "Peer  — Join a call"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Relay") {
		cfg.Role = config.RoleRelay
		return
	}

	cfg.Role = config.RolePeer
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(fmt.Sprintf("Relay host (default %s)", cfg.RelayHost)).
		Show()
	pterm.Println()

	if raw = strings.TrimSpace(raw); raw != "" {
		cfg.RelayHost = raw
	}
}

// splitList splits a comma separated flag value, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
