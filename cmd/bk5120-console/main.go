// Command bk5120-console is a small interactive console to exercise one
// CANopen node, such as a Beckhoff BK5120 bus coupler, through SDO and NMT.
//
// Usage:
//
//	bk5120-console [flags]
//
// Flags:
//
//	-config string       Configuration file path (.yaml, .yml or .toml)
//	-transport string    CAN transport: socketcan, usbcan (default "socketcan")
//	-interface string    SocketCAN interface (default "can0")
//	-port string         Serial port of the USB-CAN analyzer
//	-baud int            Serial baud rate of the USB-CAN analyzer (default 2000000)
//	-node-id int         Node ID of the device (default 1)
//	-eds string          EDS file of the device
//	-sdo-timeout dur     SDO response timeout (default 500ms)
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-log-format string   Log format: console, json (default "console")
//	-history string      Command history file
//
// Interactive Commands:
//
//	device type|name|version
//	sdo upload <index> [<subindex>]
//	sdo download <index> [<subindex>] <value>
//	nmt service {start|stop|enter-pre-operational|reset-node|reset-communication}
//	nmt node-guarding start [<guard_time_ms=100>] [<life_time_factor=5>]
//	nmt node-guarding stop
//	nmt state
//	help [command]
//	quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelodlfrtr/go-can"
	"github.com/angelodlfrtr/go-can/transports"
	canopen "github.com/jaster-prj/canopen-console"
	"github.com/jaster-prj/canopen-console/console"
	"github.com/jaster-prj/canopen-console/logger"
)

const consoleShutdownTimeout = 2 * time.Second

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bk5120-console: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		logger.Error("console failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	out := console.NewOutput(os.Stdout)

	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.NewSlog(out, level, logger.Format(cfg.LogFormat))
	logger.SetLogger(log)

	objectDic, err := loadDictionary(cfg)
	if err != nil {
		return err
	}

	bus, err := newBus(cfg)
	if err != nil {
		return err
	}
	network := canopen.NewNetwork(bus, log)
	if err := network.Run(); err != nil {
		return fmt.Errorf("open %s bus: %w", cfg.Transport, err)
	}
	defer func() {
		if err := network.Stop(); err != nil {
			log.Warn("closing bus failed", "error", err)
		}
	}()

	node := canopen.NewNode(cfg.NodeID, network, objectDic)
	node.SetLogger(log)
	if err := node.Init(); err != nil {
		return fmt.Errorf("init node %d: %w", cfg.NodeID, err)
	}
	defer node.Stop()

	node.SDOClient.Timeout = cfg.SDOTimeout
	node.Guarding.Output = out
	node.NMTMaster.Monitor.AddHandler(func(prevState, newState canopen.NodeState) {
		fmt.Fprintln(out, canopen.FormatStateChange(prevState, newState))
	})

	log.Info("console ready", "transport", cfg.Transport, "node", cfg.NodeID)

	con := console.New(console.Services{
		Transfer: node.SDOTransfer,
		NMT:      node.NMTMaster,
		Guarding: node.Guarding,
		Monitor:  node.NMTMaster.Monitor,
	}, out, log)
	con.Prompt = fmt.Sprintf("node %d> ", cfg.NodeID)
	con.HistoryFile = cfg.HistoryFile

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- con.Run(ctx, cancel)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received signal", "signal", sig)
		cancel()
		// wait for the console to close readline
		select {
		case err := <-errCh:
			return err
		case <-time.After(consoleShutdownTimeout):
			log.Warn("console did not stop in time")
			return nil
		}
	case err := <-errCh:
		return err
	}
}

func loadDictionary(cfg Config) (*canopen.ObjectDictionary, error) {
	if cfg.EDS == "" {
		return canopen.DefaultDictionary()
	}
	objectDic, err := canopen.LoadEDS(cfg.EDS, cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.EDS, err)
	}
	return objectDic, nil
}

func newBus(cfg Config) (*can.Bus, error) {
	switch cfg.Transport {
	case transportSocketCan:
		return can.NewBus(&transports.SocketCan{Interface: cfg.Interface}), nil
	case transportUSBCan:
		return can.NewBus(&transports.USBCanAnalyzer{Port: cfg.Port, BaudRate: cfg.BaudRate}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
