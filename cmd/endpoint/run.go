package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Neu-ron/Cygnet/internal/autoencoder"
	"github.com/Neu-ron/Cygnet/internal/capture"
	"github.com/Neu-ron/Cygnet/internal/config"
	"github.com/Neu-ron/Cygnet/internal/dca"
	"github.com/Neu-ron/Cygnet/internal/lymphnode"
	"github.com/Neu-ron/Cygnet/internal/pipeline"
	"github.com/Neu-ron/Cygnet/internal/scaler"
	"github.com/Neu-ron/Cygnet/internal/shipper"
)

func runEndpoint(cmd *cobra.Command, args []string) error {
	log, err := newLogger(logLevel)
	if err != nil {
		return fmt.Errorf("endpoint: build logger: %w", err)
	}
	defer log.Sync()

	companyKey, err := config.ParseCompanyKey(args[0])
	if err != nil {
		log.Error("malformed company key", zap.Error(err))
		return err
	}

	rtCfg, err := config.Load(cfgFile)
	if err != nil {
		log.Error("failed to load configuration", zap.Error(err))
		return err
	}
	if iface != "" {
		rtCfg.Capture.Interface = iface
	}

	hostname, err := os.Hostname()
	if err != nil {
		log.Error("failed to resolve local hostname", zap.Error(err))
		return err
	}
	localAddr, err := resolveLocalAddr(hostname)
	if err != nil {
		log.Error("failed to resolve local address", zap.Error(err))
		return err
	}

	sc, err := scaler.Load(rtCfg.Artifact.ScalerPath)
	if err != nil {
		log.Error("failed to load feature scaler", zap.Error(err))
		return err
	}
	benign, err := autoencoder.LoadModel(rtCfg.Artifact.BenignModelPath)
	if err != nil {
		log.Error("failed to load benign autoencoder", zap.Error(err))
		return err
	}
	malicious, err := autoencoder.LoadModel(rtCfg.Artifact.MaliciousModelPath)
	if err != nil {
		log.Error("failed to load malicious autoencoder", zap.Error(err))
		return err
	}
	extractor := autoencoder.NewExtractor(benign, malicious)

	src, err := capture.OpenLive(rtCfg.Capture.Interface, localAddr)
	if err != nil {
		log.Error("failed to open capture interface", zap.String("interface", rtCfg.Capture.Interface), zap.Error(err))
		return err
	}
	defer src.Close()

	agentCfg := pipeline.Config{
		CollectorToDCACapacity: rtCfg.Queues.CollectorToDCACapacity,
		DCAToLymphNodeCapacity: rtCfg.Queues.DCAToLymphNodeCapacity,
		Scaler:                 sc,
		Extractor:              extractor,
		DCA: dca.Config{
			PopulationSize: rtCfg.DCA.PopulationSize,
			MigrationRange: [2]float64{rtCfg.DCA.MigrationRangeMin, rtCfg.DCA.MigrationRangeMax},
			MaxAntigens:    rtCfg.DCA.MaxAntigens,
			Weights:        weightsFrom(rtCfg.DCA),
			SegmentSize:    rtCfg.DCA.SegmentSize,
		},
		LymphNode: lymphnode.Config{AnomalyThreshold: rtCfg.Lymph.AnomalyThreshold},
		Reconnect: rtCfg.Shipper.ReconnectWith,
	}
	agent := pipeline.NewAgent(agentCfg, log)

	shipCfg := shipper.Config{
		ServerAddr:  companyKey.ServerAddr(),
		Hostname:    hostname,
		CompanyHash: companyKey.Raw,
		DialTimeout: rtCfg.Shipper.DialTimeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return agent.Run(ctx, src, shipCfg)
}

func resolveLocalAddr(hostname string) (string, error) {
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("endpoint: resolve %q: %w", hostname, err)
	}
	return addrs[0], nil
}

func weightsFrom(cfg config.DCAConfig) dca.Weights {
	w := dca.DefaultWeights
	if len(cfg.CSMWeights) == 2 {
		w.CSM = [2]float64{cfg.CSMWeights[0], cfg.CSMWeights[1]}
	}
	if len(cfg.KWeights) == 2 {
		w.K = [2]float64{cfg.KWeights[0], cfg.KWeights[1]}
	}
	return w
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("endpoint: invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
