// Package session orchestrates one extraction run end to end: normalize,
// deduplicate, extract (pattern and LLM concurrently), merge, resolve dates,
// filter negations, classify subtypes, calibrate confidence, build the
// timeline, and score quality.  The run is request-scoped; no state survives
// it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/confidence"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/dedup"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/llm"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/merge"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/negation"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/normalize"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/pattern"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/quality"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/temporal"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/timeline"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// Pipeline runs one full extraction session.
type Pipeline interface {
	// Extract processes the request and returns a best-effort session.  The
	// only error conditions are a structurally invalid request and session
	// cancellation; every processing failure degrades instead.
	Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error)
}

type pipeline struct {
	cfg        config.PipelineConfig
	normalizer normalize.Normalizer
	dedup      dedup.Deduplicator
	pattern    pattern.Extractor
	llm        llm.Extractor
	merger     merge.Merger
	temporal   temporal.Resolver
	negation   negation.Filter
	calibrator confidence.Scorer
	builder    timeline.Builder
	causal     timeline.Inferrer
	responses  timeline.Tracker
	evolution  timeline.Analyzer
	quality    quality.Scorer
	logger     logging.Logger
}

// NewPipeline wires the full extraction pipeline.  extractor may be nil or
// disabled; the pipeline then runs pattern-only.  logger may be nil.
func NewPipeline(cfg config.PipelineConfig, extractor llm.Extractor, logger logging.Logger) Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("session")
	if extractor == nil {
		extractor = llm.NewDisabledExtractor()
	}
	return &pipeline{
		cfg:        cfg,
		normalizer: normalize.NewNormalizer(logger),
		dedup: dedup.NewDeduplicator(dedup.Options{
			JaccardThreshold: cfg.Dedup.JaccardThreshold,
			MaxLengthRatio:   cfg.Dedup.MaxLengthRatio,
			Workers:          cfg.Dedup.Workers,
		}, logger),
		pattern:    pattern.NewExtractor(logger),
		llm:        extractor,
		merger:     merge.NewMerger(logger),
		temporal:   temporal.NewResolver(logger),
		negation:   negation.NewFilter(logger),
		calibrator: confidence.NewScorer(logger),
		builder:    timeline.NewBuilder(logger),
		causal: timeline.NewInferrer(timeline.CausalConfig{
			MayHaveCausedWindowDays: cfg.Causal.MayHaveCausedWindowDays,
			PromptedWindowDays:      cfg.Causal.PromptedWindowDays,
			ResultedInLookahead:     cfg.Causal.ResultedInLookahead,
		}, logger),
		responses: timeline.NewTracker(timeline.ResponseConfig{
			PharmacologicWindowDays: cfg.Response.PharmacologicWindowDays,
			SurgicalWindowDays:      cfg.Response.SurgicalWindowDays,
		}, logger),
		evolution: timeline.NewAnalyzer(logger),
		quality:   quality.NewScorer(logger),
		logger:    logger,
	}
}

func (p *pipeline) Extract(ctx context.Context, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	session := &clinical.ExtractionSession{
		ID:        common.ID(uuid.New().String()),
		CreatedAt: started.UTC(),
	}

	docs := make([]clinical.ClinicalDocument, len(req.Documents))
	for i, text := range req.Documents {
		docs[i] = clinical.ClinicalDocument{Index: i, Text: text}
	}
	normalized, warnings := p.normalizer.NormalizeAll(docs)
	session.Documents = normalized
	session.Warnings = append(session.Warnings, warnings...)
	if len(normalized) == 0 {
		return p.finish(session, started), nil
	}

	// Deduplication is the CPU-bound stage; it runs off the calling
	// goroutine and to completion even when the session context is
	// cancelled, since cancellation only applies to the LLM call.
	dres, err := p.offloadDedup(ctx, normalized)
	if err != nil {
		return nil, err
	}
	session.DeduplicatedText = dres.Text
	session.DedupStats = dres.Stats
	boundaries := docBoundaries(dres.Kept)

	// Pattern and LLM extraction are independent reads of the deduplicated
	// text; run them concurrently and join before merging.
	var (
		wg         sync.WaitGroup
		patternRes *pattern.ExtractionResult
		llmEnts    []*clinical.ExtractedEntity
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		patternRes = p.pattern.Extract(dres.Text, req.Hints)
	}()
	go func() {
		defer wg.Done()
		llmEnts = p.runLLM(ctx, dres.Text, req.Hints, session)
	}()
	wg.Wait()

	session.PrimaryPathology = patternRes.Primary
	session.DetectedPathologies = patternRes.Pathologies

	patternEnts := make([]*clinical.ExtractedEntity, len(patternRes.Entities))
	for i := range patternRes.Entities {
		patternEnts[i] = &patternRes.Entities[i]
	}

	merged := p.merger.Merge(patternEnts, llmEnts)
	resolution := p.temporal.Resolve(dres.Text, merged, boundaries)
	kept, removed := p.negation.Filter(dres.Text, merged)
	if len(removed) > 0 {
		p.logger.Debug("negated entities removed", logging.Int("count", len(removed)))
	}
	pattern.ClassifySubtypes(dres.Text, kept)

	breakdown := p.calibrator.SourceQuality(dres.Text)
	p.calibrator.Calibrate(kept, breakdown)
	session.Entities = p.applyConfidenceFloor(kept)

	session.Timeline = p.builder.Build(session.Entities, resolution.AdmissionDate, resolution.DischargeDate)

	// Response tracking and trajectory analysis are read-only over the
	// finished timeline; run them in parallel.
	var derive sync.WaitGroup
	derive.Add(3)
	go func() {
		defer derive.Done()
		session.CausalRelationships = p.causal.Infer(session.Timeline)
	}()
	go func() {
		defer derive.Done()
		session.Responses = p.responses.Track(session.Timeline)
	}()
	go func() {
		defer derive.Done()
		session.Trajectory = p.evolution.Analyze(session.Entities)
	}()
	derive.Wait()

	return p.finish(session, started), nil
}

// offloadDedup runs deduplication on its own goroutine.  The dedup context is
// detached from the session context so the stage runs to completion; the
// session context still aborts the wait itself.
func (p *pipeline) offloadDedup(ctx context.Context, docs []clinical.ClinicalDocument) (*dedup.Result, error) {
	type outcome struct {
		res *dedup.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := p.dedup.Deduplicate(context.WithoutCancel(ctx), docs)
		ch <- outcome{res, err}
	}()
	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runLLM performs the external extraction with a bounded timeout.  Any
// failure is recorded on the session and degrades to pattern-only; it never
// fails the run.
func (p *pipeline) runLLM(ctx context.Context, text string, hints clinical.ExtractionHints, session *clinical.ExtractionSession) []*clinical.ExtractedEntity {
	if !p.cfg.LLM.Enabled {
		return nil
	}
	timeout := p.cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	llmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	draft, usage, err := p.llm.Extract(llmCtx, text, hints)
	session.Usage.Add(usage)
	if err != nil {
		session.Degraded = true
		session.Warnings = append(session.Warnings,
			"external extractor unavailable, proceeding with pattern-only results: "+err.Error())
		p.logger.Warn("llm extraction degraded", logging.Err(err))
		return nil
	}
	return llm.Coerce(draft)
}

// applyConfidenceFloor drops entities whose calibrated confidence fell below
// the configured minimum.
func (p *pipeline) applyConfidenceFloor(entities []*clinical.ExtractedEntity) []*clinical.ExtractedEntity {
	if p.cfg.MinConfidence <= 0 {
		return entities
	}
	out := entities[:0]
	for _, ent := range entities {
		if ent.Confidence >= p.cfg.MinConfidence {
			out = append(out, ent)
		}
	}
	return out
}

// finish computes the quality report and usage duration and returns the
// session.
func (p *pipeline) finish(session *clinical.ExtractionSession, started time.Time) *clinical.ExtractionSession {
	session.Quality = p.quality.Score(session)
	session.Usage.DurationMs = time.Since(started).Milliseconds()

	p.logger.Info("extraction session complete",
		logging.String("session_id", string(session.ID)),
		logging.String("pathology", string(session.PrimaryPathology)),
		logging.Int("entities", len(session.Entities)),
		logging.Int("events", len(session.Timeline)),
		logging.Float64("quality", session.Quality.Overall),
		logging.Bool("degraded", session.Degraded),
	)
	return session
}

// docBoundaries reconstructs per-document offset ranges inside the joined
// deduplicated text from the kept representatives.
func docBoundaries(kept []clinical.Sentence) []temporal.DocBoundary {
	var out []temporal.DocBoundary
	offset := 0
	for i, s := range kept {
		if i > 0 {
			offset++ // the joining space
		}
		end := offset + len(s.Text)
		if n := len(out); n > 0 && out[n-1].DocIndex == s.DocIndex {
			out[n-1].End = end
		} else {
			out = append(out, temporal.DocBoundary{DocIndex: s.DocIndex, Start: offset, End: end})
		}
		offset = end
	}
	return out
}
