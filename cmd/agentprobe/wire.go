package main

import (
	"time"

	"go.uber.org/zap"

	"agentprobe/internal/chat"
	"agentprobe/internal/config"
	"agentprobe/internal/dedup"
	"agentprobe/internal/embedding"
	"agentprobe/internal/persona"
	"agentprobe/internal/probe"
	"agentprobe/internal/reasoning"
	"agentprobe/internal/reconcile"
	"agentprobe/internal/telemetry"
)

// runDocument is the report printed by "run": the run report plus the
// session's duplicated-question clusters.
type runDocument struct {
	*probe.RunReport
	DuplicateQuestions []dedup.Cluster `json:"duplicate_questions"`
}

// buildRunner wires one probe run from configuration. Every run gets
// fresh clients and a fresh telemetry reader, so cursors and session
// state never leak between runs.
func buildRunner(cfg *config.Config, logger *zap.Logger) (*probe.Orchestrator, error) {
	chatClient, err := chat.NewClient(chat.Config{
		APIURL:     cfg.Chat.APIURL,
		UserID:     cfg.Probe.UserID,
		Timeout:    time.Duration(cfg.Chat.TimeoutSec) * time.Second,
		RetryCount: cfg.Chat.RetryCount,
	}, logger)
	if err != nil {
		return nil, err
	}

	logsClient, err := telemetry.NewClient(telemetry.ClientConfig{
		APIURL:     cfg.Telemetry.APIURL,
		Timeout:    time.Duration(cfg.Telemetry.TimeoutSec) * time.Second,
		RetryCount: cfg.Telemetry.RetryCount,
	}, logger)
	if err != nil {
		return nil, err
	}
	reader := telemetry.NewReader(logsClient, logger)

	reasoner, err := reasoning.NewOpenAIClient(reasoning.OpenAIConfig{
		APIKey:  cfg.Reasoner.APIKey,
		BaseURL: cfg.Reasoner.BaseURL,
		Model:   cfg.Reasoner.Model,
		Timeout: time.Duration(cfg.Reasoner.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	analyser := reconcile.NewOracleAnalyser(reasoner, persona.DefaultCatalog(), logger)
	driver := reasoning.NewDriver(reasoner, logger)

	return probe.NewOrchestrator(
		chatClient,
		probe.ReaderTracker{Reader: reader},
		analyser,
		driver,
		persona.Default(),
		probe.Config{
			UserID:          cfg.Probe.UserID,
			MaxTurns:        cfg.Probe.MaxTurns,
			MaxTotal:        time.Duration(cfg.Probe.MaxTotalSeconds) * time.Second,
			LogsLimit:       cfg.Telemetry.LogsLimit,
			InitialUserMsg:  cfg.Probe.InitialUserMsg,
			InitialAgentMsg: cfg.Probe.InitialAgentMsg,
		},
		logger,
	), nil
}

// buildDeduper wires the embedding-backed question deduplicator.
func buildDeduper(cfg *config.Config, logger *zap.Logger) (*dedup.Deduplicator, error) {
	engine, err := embedding.NewGenAIEngine(cfg.Embedding.APIKey, cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}
	return dedup.NewDeduplicator(engine, cfg.Probe.DedupThreshold, logger), nil
}
