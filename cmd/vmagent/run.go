package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/archipel-project/vmagent/internal/agent"
	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/config"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/metrics"
	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/server"
	"github.com/archipel-project/vmagent/pkg/scheduler"
)

var logLevel string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the agent for the VM named in the config file",
		RunE:  runAgent,
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func loadConfig() (*config.Configuration, error) {
	v := initViper()
	cfg := config.NewConfigurationWithOptionsAndDefaults()
	if err := v.ReadInConfig(); err == nil {
		raw, readErr := os.ReadFile(v.ConfigFileUsed())
		if readErr != nil {
			return nil, readErr
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if err := zc.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return zc.Build()
}

// runAgent wires the agent against the hypervisor/bus boundary packages.
// The real driver and bus client are deliberately out of this module's
// scope; FakeDriver/FakeClient stand in here so `run` is a
// complete, runnable loop end to end. A production deployment replaces
// them with concrete implementations that satisfy hypervisor.Driver and
// bus.Client.
func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if v := cfg.LogLevel; logLevel == "info" && v != "" {
		logLevel = v
	}
	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	vmUUID, err := uuid.Parse(cfg.VirtualMachine.UUID)
	if err != nil {
		return fmt.Errorf("invalid virtual_machine.uuid: %w", err)
	}
	password, err := readPasswordFile(cfg.VirtualMachine.PasswordFile)
	if err != nil {
		return err
	}

	identity := agentIdentity(vmUUID, cfg.VirtualMachine.JID, cfg.VirtualMachine.DisplayName, password)

	sched := scheduler.NewScheduler(cfg.Agent.NumWorkers)
	defer sched.Close()

	driver := hypervisor.NewFakeDriver(hypervisor.ClassQEMU)
	busClient := bus.NewFakeClient()

	agentCfg := agent.DefaultConfig()
	agentCfg.BaseFolder = cfg.Agent.BaseFolder
	agentCfg.MaxLockTime = cfg.Agent.MaxLockTime
	agentCfg.MemoryPollInterval = cfg.VirtualMachine.MemoryPollInterval
	agentCfg.MemoryPollRetries = cfg.VirtualMachine.MemoryPollRetries

	a, err := agent.New(identity, agentCfg, driver, busClient, sched)
	if err != nil {
		return fmt.Errorf("construct agent: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg)
	collectors.SubscribeHookCounters(a.Hooks())

	srv := server.NewServer(cfg.Server, a, reg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return srv.Start(ctx)
}

func readPasswordFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read password file: %w", err)
	}
	return string(data), nil
}

// agentIdentity builds the agent's fixed identity from config-file values.
// One process runs exactly one VM's agent, so this is assembled once at
// startup rather than discovered.
func agentIdentity(vmUUID uuid.UUID, jid, displayName, password string) models.Identity {
	return models.Identity{
		UUID:        vmUUID,
		JID:         jid,
		DisplayName: displayName,
		Password:    password,
	}
}
