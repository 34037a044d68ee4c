// Package dedup removes the copy-forward redundancy endemic to daily progress
// notes.  Sentences are clustered by token-set Jaccard similarity using
// union-find; each cluster keeps its longest member as the representative,
// and representatives are emitted in original document order so downstream
// temporal reasoning still sees the notes chronologically.
package dedup

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

// Options tunes the deduplicator.
type Options struct {
	// JaccardThreshold is the minimum token-set similarity for two sentences
	// to be considered duplicates.
	JaccardThreshold float64

	// MaxLengthRatio prunes comparisons: a pair is only scored when
	// len(shorter)/len(longer) >= MaxLengthRatio, since such pairs can never
	// reach a high Jaccard anyway.
	MaxLengthRatio float64

	// Workers bounds the number of goroutines scoring candidate pairs.
	Workers int
}

// DefaultOptions mirrors the production defaults in the config package.
func DefaultOptions() Options {
	return Options{JaccardThreshold: 0.85, MaxLengthRatio: 0.5, Workers: 4}
}

// Result is the full output of one deduplication run.
type Result struct {
	Sentences []clinical.Sentence          // all input sentences, with IDs
	Clusters  []clinical.SimilarityCluster // one per group of duplicates
	Kept      []clinical.Sentence          // representatives, document order
	Text      string                       // Kept joined with a single space
	Stats     clinical.DedupStats
}

// Deduplicator clusters near-duplicate sentences across a document set.
type Deduplicator interface {
	Deduplicate(ctx context.Context, docs []clinical.ClinicalDocument) (*Result, error)
}

type deduplicator struct {
	opts   Options
	logger logging.Logger
}

// NewDeduplicator constructs a Deduplicator.  Zero-valued option fields are
// replaced with defaults.
func NewDeduplicator(opts Options, logger logging.Logger) Deduplicator {
	def := DefaultOptions()
	if opts.JaccardThreshold <= 0 || opts.JaccardThreshold > 1 {
		opts.JaccardThreshold = def.JaccardThreshold
	}
	if opts.MaxLengthRatio <= 0 || opts.MaxLengthRatio > 1 {
		opts.MaxLengthRatio = def.MaxLengthRatio
	}
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &deduplicator{opts: opts, logger: logger.Named("dedup")}
}

type candidatePair struct{ a, b int }

func (d *deduplicator) Deduplicate(ctx context.Context, docs []clinical.ClinicalDocument) (*Result, error) {
	sentences := SegmentAll(docs)
	if len(sentences) == 0 {
		return nil, errors.New(errors.CodeSegmentationFailed, "no sentences produced from input documents")
	}

	sets := make([]map[string]struct{}, len(sentences))
	for i, s := range sentences {
		sets[i] = TokenSet(s.Text)
	}

	// Sort indices by token count so the length-ratio prune becomes a sliding
	// window over a sorted slice instead of a full pairwise scan.
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return len(sets[order[x]]) < len(sets[order[y]])
	})

	pairs := make(chan candidatePair, 256)
	matches := make(chan candidatePair, 256)

	var wg sync.WaitGroup
	for w := 0; w < d.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pairs {
				if Jaccard(sets[p.a], sets[p.b]) >= d.opts.JaccardThreshold {
					matches <- p
				}
			}
		}()
	}

	collectDone := make(chan struct{})
	uf := newUnionFind(len(sentences))
	go func() {
		defer close(collectDone)
		for p := range matches {
			uf.union(p.a, p.b)
		}
	}()

	var genErr error
generate:
	for x := 0; x < len(order); x++ {
		ia := order[x]
		la := len(sets[ia])
		for y := x + 1; y < len(order); y++ {
			ib := order[y]
			lb := len(sets[ib])
			// order is sorted by length, so la <= lb
			if lb > 0 && float64(la)/float64(lb) < d.opts.MaxLengthRatio {
				break
			}
			select {
			case pairs <- candidatePair{a: ia, b: ib}:
			case <-ctx.Done():
				genErr = ctx.Err()
				break generate
			}
		}
	}
	close(pairs)
	wg.Wait()
	close(matches)
	<-collectDone
	if genErr != nil {
		return nil, errors.Wrap(genErr, errors.CodeClusteringFailed, "deduplication cancelled")
	}

	return d.assemble(sentences, uf), nil
}

// assemble groups sentences by union-find root, picks representatives, and
// rebuilds the deduplicated text in document order.
func (d *deduplicator) assemble(sentences []clinical.Sentence, uf *unionFind) *Result {
	groups := make(map[int][]int)
	for i := range sentences {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	clusters := make([]clinical.SimilarityCluster, 0, len(groups))
	kept := make([]clinical.Sentence, 0, len(groups))
	for _, members := range groups {
		rep := members[0]
		for _, m := range members[1:] {
			// longest representative wins; earlier sentence breaks ties so
			// repeated runs stay deterministic
			if len(sentences[m].Text) > len(sentences[rep].Text) {
				rep = m
			}
		}
		cluster := clinical.SimilarityCluster{Representative: sentences[rep]}
		for _, m := range members {
			cluster.Members = append(cluster.Members, sentences[m])
		}
		sort.Slice(cluster.Members, func(x, y int) bool {
			return cluster.Members[x].ID < cluster.Members[y].ID
		})
		clusters = append(clusters, cluster)
		kept = append(kept, sentences[rep])
	}

	// document order: (doc index, offset) of the representative
	sort.Slice(kept, func(x, y int) bool {
		if kept[x].DocIndex != kept[y].DocIndex {
			return kept[x].DocIndex < kept[y].DocIndex
		}
		return kept[x].Offset < kept[y].Offset
	})
	sort.Slice(clusters, func(x, y int) bool {
		return clusters[x].Representative.ID < clusters[y].Representative.ID
	})

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = s.Text
	}

	res := &Result{
		Sentences: sentences,
		Clusters:  clusters,
		Kept:      kept,
		Text:      strings.Join(parts, " "),
		Stats: clinical.DedupStats{
			OriginalSentences: len(sentences),
			KeptSentences:     len(kept),
			ClusterCount:      len(clusters),
		},
	}
	d.logger.Info("deduplication complete",
		logging.Int("original", res.Stats.OriginalSentences),
		logging.Int("kept", res.Stats.KeptSentences),
		logging.Float64("reduction", res.Stats.ReductionRatio()),
	)
	return res
}
