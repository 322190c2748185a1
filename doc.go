// Package harvester provides an adaptive multi-source acquisition engine
// for job-posting aggregation. It orchestrates heterogeneous backend
// collectors, selects an execution strategy from tracked performance, and
// fuses per-source results into one deduplicated, provenance-tagged
// record set.
//
// # Architecture
//
// The engine composes four cooperating parts, all owned by a single
// Orchestrator instance:
//
// 1. Performance tracking: bounded, per-strategy sliding windows of run
// outcomes, with seeded baselines so untried strategies stay selectable.
//
// 2. Strategy selection: weighted scoring over success rate, quality,
// speed, stability, and environment fit, with deterministic tie-breaking
// and unconditional explicit overrides.
//
// 3. Execution coordination: only, primary-with-fallback, and hybrid
// policies (progressive, parallel, adaptive), with per-collector
// timeouts and synthesized timeout results.
//
// 4. Data fusion: alias-based field standardization, cross-source
// deduplication with provenance-preserving merges, and validation.
//
// # Quick Start
//
//	cfg := config.Default()
//	orch := engine.New(cfg,
//	    engine.WithCollector(apiCollector),
//	    engine.WithCollector(browserCollector),
//	)
//
//	result := orch.Run(ctx, &models.AcquisitionRequest{
//	    SearchTerm: "data engineer",
//	    MaxRecords: 25,
//	})
//
// Run always returns a completed ExecutionResult; collector failures are
// folded into per-source summaries, never surfaced as panics or errors.
//
// Concrete collectors implement the core.SourceCollector contract and
// usually embed base.BaseCollector for rate limiting, circuit breaking,
// retries, and health monitoring.
package harvester
