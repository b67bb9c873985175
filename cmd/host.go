package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"rein/internal/api"
	"rein/internal/config"
	"rein/internal/dispatch"
	"rein/internal/input"
	"rein/internal/metrics"
	"rein/internal/network"
	"rein/internal/osutils"
	"rein/internal/tray"
)

func hostCmd() *cobra.Command {
	var (
		configPath string
		withTray   bool
		firewall   bool
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Accept clients and drive this machine's input",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runHost(ctx, stop, configPath, withTray, firewall)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)/rein/server-config.json")
	cmd.Flags().BoolVar(&withTray, "tray", false, "Show a system tray icon")
	cmd.Flags().BoolVar(&firewall, "firewall", true, "Ensure a Windows firewall rule for the port")

	return cmd
}

func runHost(ctx context.Context, stop context.CancelFunc, configPath string, withTray, firewall bool) error {
	log.Println("Rein host starting...")

	cfgMgr, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	if err := cfgMgr.Load(); err != nil {
		return fmt.Errorf("load config %s: %w", cfgMgr.Path(), err)
	}
	cfg := cfgMgr.Get()
	log.Printf("Config: %s (port %d, invert %v, sensitivity %.2f)",
		cfgMgr.Path(), cfg.FrontendPort, cfg.MouseInvert, cfg.MouseSensitivity)

	if runtime.GOOS == "windows" && !osutils.IsAdmin() {
		log.Println("Note: input to elevated windows requires running as Administrator")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	d := dispatch.New(input.NewDevice(), cfgMgr, dispatch.Options{
		LocalIP: network.GetLocalIP,
		Metrics: rec,
	})
	go d.Run(ctx)

	srv := api.NewServer(cfgMgr, d, api.Options{
		Metrics:  rec,
		Gatherer: reg,
		Firewall: firewall,
	})

	if ip, err := network.GetLocalIP(); err == nil {
		log.Printf("Clients connect to ws://%s/ws", network.HostAddr(ip, cfg.FrontendPort))
	}

	if !withTray {
		log.Println("Rein host running. Press Ctrl+C to stop.")
		return srv.Start(ctx)
	}

	t := newHostTray(cfgMgr, stop)

	served := make(chan error, 1)
	go func() {
		served <- srv.Start(ctx)
		t.Stop()
	}()

	// systray needs the main goroutine on macOS
	t.Run()
	stop()
	return <-served
}

func newHostTray(cfgMgr *config.Manager, stop context.CancelFunc) *tray.Tray {
	t := tray.New("Rein", "Rein input relay")

	addr := fmt.Sprintf("Port %d", cfgMgr.Get().FrontendPort)
	if ip, err := network.GetLocalIP(); err == nil {
		addr = network.HostAddr(ip, cfgMgr.Get().FrontendPort)
	}
	t.AddStatus("Listening on " + addr)
	settings := t.AddStatus(settingsLine(cfgMgr.Get()))

	cfgMgr.RegisterChangeCallback(func(_, updated config.Config) {
		t.SetItemTitle(settings, settingsLine(updated))
	})

	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		log.Println("Shutting down...")
		stop()
	})
	return t
}

func settingsLine(cfg config.Config) string {
	return fmt.Sprintf("Sensitivity %.2f, invert %v", cfg.MouseSensitivity, cfg.MouseInvert)
}
