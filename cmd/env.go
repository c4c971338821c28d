package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/agent"
	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/compact"
	"github.com/elegant-foods/costing-cli/internal/jobstore"
	"github.com/elegant-foods/costing-cli/internal/pipeline"
	"github.com/elegant-foods/costing-cli/internal/pricing"
	"github.com/elegant-foods/costing-cli/internal/resilience"
	anthropicpkg "github.com/elegant-foods/costing-cli/pkg/anthropic"
)

// pipelineEnv holds the catalog index, job store, agent, and orchestrator
// needed by the estimate/resume/serve commands.
type pipelineEnv struct {
	Store        jobstore.Store
	Index        *catalog.Index
	Agent        *agent.Agent
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline loads the catalog, opens the job store, builds the agent and
// orchestrator. Callers should defer env.Close().
func initPipeline() (*pipelineEnv, error) {
	ix, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load catalog")
	}

	st, err := jobstore.NewFile(cfg.Store.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "open job store")
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimit),
	)

	retryCfg := resilience.DefaultRetryConfig("agent")
	if cfg.Pipeline.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.Pipeline.MaxRetries
	}

	chefAgent := agent.New(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, ix,
		agent.WithSearchTopK(cfg.Pricing.TopK),
		agent.WithSearchFloor(float64(cfg.Pricing.FloorThreshold)),
		agent.WithRetry(retryCfg),
	)

	resolverOpts := []pricing.Option{
		pricing.WithThresholds(float64(cfg.Pricing.HighThreshold), float64(cfg.Pricing.FloorThreshold)),
		pricing.WithTopK(cfg.Pricing.TopK),
	}
	if cfg.Pricing.PolicyFile != "" {
		policy, err := pricing.LoadPolicy(cfg.Pricing.PolicyFile)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load pricing policy")
		}
		resolverOpts = append(resolverOpts, pricing.WithPolicy(policy))
		zap.L().Info("pricing policy loaded", zap.String("path", cfg.Pricing.PolicyFile))
	}
	resolver := pricing.NewResolver(resolverOpts...)

	orch := pipeline.New(st, ix, resolver, compact.New(cfg.Compact.MaxBytes), chefAgent,
		pipeline.WithItemTimeout(time.Duration(cfg.Pipeline.ItemTimeoutSecs)*time.Second),
	)

	return &pipelineEnv{
		Store:        st,
		Index:        ix,
		Agent:        chefAgent,
		Orchestrator: orch,
	}, nil
}
