/*
Copyright © 2023 Jonathan Taylor <jonrtaylor12@gmail.com>
*/

// pumpctl drives a configured syringe pump from the command line. It is
// the operator-facing stand-in for the instrument GUI: it owns the
// retry-or-give-up decision when a pump does not answer at bring-up.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jt05610/syringe"
	commserial "github.com/jt05610/syringe/comm/serial"
	"github.com/jt05610/syringe/config"
	"github.com/jt05610/syringe/devices"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath  string
	pumpName string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "pumpctl",
	Short: "pumpctl controls laboratory syringe pumps over serial",
	Long: `pumpctl talks to motorized syringe pumps through their serial
protocols and exposes one unit-normalized command set regardless of the
pump model. Volumes are microliters; rates are value plus unit
(mL/hr, mL/min, uL/hr, uL/min).`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path of the configuration file to use")
	rootCmd.PersistentFlags().StringVarP(&pumpName, "pump", "p", "", "name of the pump to drive (default: first configured)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log wire traffic")
}

func newLogger() *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return l
	}
	return zap.NewNop()
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	path := cfgPath
	if path == "" {
		path = os.Getenv("PUMPCTL_CONFIG")
	}
	if path == "" {
		return nil, errors.New("no configuration file; use --config or set PUMPCTL_CONFIG")
	}
	return config.Load(path)
}

func selectPump(cfg *config.Config) (*config.Pump, error) {
	if len(cfg.Pumps) == 0 {
		return nil, errors.New("no pumps configured")
	}
	if pumpName == "" {
		return &cfg.Pumps[0], nil
	}
	for i := range cfg.Pumps {
		if cfg.Pumps[i].Name == pumpName {
			return &cfg.Pumps[i], nil
		}
	}
	return nil, fmt.Errorf("no pump named %q in configuration", pumpName)
}

// connect brings the selected pump up, looping on operator confirmation
// when it does not answer.
func connect(logger *zap.Logger) (syringe.Pump, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pc, err := selectPump(cfg)
	if err != nil {
		return nil, nil, err
	}

	model := devices.Model(pc.Model)
	var port *commserial.Port
	cleanup := func() {}
	if model != devices.Sim {
		sc, err := cfg.SerialPorts[pc.SerialPort].Comm()
		if err != nil {
			return nil, nil, err
		}
		port, err = commserial.Open(sc)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open serial port %q: %w", sc.Port, err)
		}
		cleanup = func() { _ = port.Close() }
	}

	in := bufio.NewReader(os.Stdin)
	for {
		p, outcome := devices.BringUp(model, port, pc.Address, logger)
		if outcome == devices.Connected {
			return p, cleanup, nil
		}
		fmt.Fprintf(os.Stderr, "Cannot communicate with the pump %s, maybe it is off?\nRetry? [y/N]: ", pc.Name)
		line, _ := in.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			cleanup()
			return nil, nil, fmt.Errorf("%w: %s", syringe.ErrNotResponding, pc.Name)
		}
	}
}

// withPump wraps a subcommand body with bring-up and teardown.
func withPump(f func(p syringe.Pump, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer func() { _ = logger.Sync() }()
		p, cleanup, err := connect(logger)
		if err != nil {
			return err
		}
		defer cleanup()
		return f(p, args)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
