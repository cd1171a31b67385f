package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"

	"jacref/internal/extractor"
	"jacref/internal/rules"
)

// Query fan-out caps, bounding work against corpus size.
const (
	maxRuleConstructs    = 20
	maxExampleConstructs = 15
	ruleDedupPrefixLen   = 200
)

// Options configures retrieval behavior.
type Options struct {
	RulesPerSection    int
	ExamplesPerSection int
	MMRLambda          float64
}

func (o *Options) defaults() {
	if o.RulesPerSection <= 0 {
		o.RulesPerSection = 15
	}
	if o.ExamplesPerSection <= 0 {
		o.ExamplesPerSection = 3
	}
	if o.MMRLambda <= 0 {
		o.MMRLambda = 0.5
	}
}

// Stats summarizes one retrieval pass.
type Stats struct {
	RulesRetrieved    int `json:"rules_retrieved"`
	ExampleTypes      int `json:"example_types"`
	ConstructsQueried int `json:"constructs_queried"`
}

// Result is what the assembler consumes: rule texts in final priority order
// and MMR-diverse example texts grouped by construct type.
type Result struct {
	Rules    []string
	Examples map[string][]string
	Stats    Stats
}

// Retriever orchestrates both collections for the assembly stage. It is an
// explicit object constructed once and passed down; EnsureReady replaces any
// init-on-first-use, and calling it again is a no-op.
type Retriever struct {
	store *Store
	opts  Options
	ready bool
}

// NewRetriever wraps an open store.
func NewRetriever(store *Store, opts Options) *Retriever {
	opts.defaults()
	return &Retriever{store: store, opts: opts}
}

// EnsureReady prepares the example collection for this run. Idempotent.
func (r *Retriever) EnsureReady(ctx context.Context) error {
	if r.ready {
		return nil
	}
	if err := r.store.ResetExamples(ctx); err != nil {
		return fmt.Errorf("reset example collection: %w", err)
	}
	r.ready = true
	return nil
}

// EnsureRulesIndexed indexes nuggets unless the rule collection is already
// populated. Returns how many entries the collection ended up holding.
func (r *Retriever) EnsureRulesIndexed(ctx context.Context, nuggets []rules.RuleNugget) (int, error) {
	indexed, err := r.store.IsIndexed(ctx)
	if err != nil {
		return 0, err
	}
	if indexed {
		log.Printf("Rules already indexed (%d entries)", len(nuggets))
		return len(nuggets), nil
	}
	count, err := r.store.IndexRules(ctx, nuggets)
	if err != nil {
		return 0, err
	}
	log.Printf("Indexed %d rule nuggets", count)
	return count, nil
}

// IndexExamples rebuilds the example collection from the current corpus.
func (r *Retriever) IndexExamples(ctx context.Context, content *extractor.ExtractedContent) (int, error) {
	if err := r.EnsureReady(ctx); err != nil {
		return 0, err
	}
	count, err := r.store.IndexExamples(ctx, content.Examples)
	if err != nil {
		return 0, err
	}
	log.Printf("Indexed %d code examples", count)
	return count, nil
}

// RetrieveForAssembly runs one rule-topic query per detected construct and
// one MMR example query per construct that has indexed examples. Rules are
// deduplicated by content prefix, then ordered by ascending priority and
// descending score, so priority-1 nuggets always lead.
func (r *Retriever) RetrieveForAssembly(ctx context.Context, content *extractor.ExtractedContent) (*Result, error) {
	if err := r.EnsureReady(ctx); err != nil {
		return nil, err
	}

	constructSet := map[string]bool{}
	var allConstructs []string
	for _, kw := range content.SortedKeywords() {
		if !constructSet[kw] {
			constructSet[kw] = true
			allConstructs = append(allConstructs, kw)
		}
	}
	var exampleConstructs []string
	for ct := range content.Examples {
		exampleConstructs = append(exampleConstructs, ct)
		if !constructSet[ct] {
			constructSet[ct] = true
			allConstructs = append(allConstructs, ct)
		}
	}
	sort.Strings(exampleConstructs)

	seen := map[string]bool{}
	var allRules []ScoredRule

	limit := allConstructs
	if len(limit) > maxRuleConstructs {
		limit = limit[:maxRuleConstructs]
	}
	for _, construct := range limit {
		results, err := r.store.QueryByTopic(ctx, construct, []string{construct}, r.opts.RulesPerSection)
		if err != nil {
			return nil, fmt.Errorf("rule query for %q: %w", construct, err)
		}
		for _, rule := range results {
			key := rule.Content
			if len(key) > ruleDedupPrefixLen {
				key = key[:ruleDedupPrefixLen]
			}
			if !seen[key] {
				seen[key] = true
				allRules = append(allRules, rule)
			}
		}
	}

	sort.SliceStable(allRules, func(i, j int) bool {
		if allRules[i].Priority != allRules[j].Priority {
			return allRules[i].Priority < allRules[j].Priority
		}
		return allRules[i].Score > allRules[j].Score
	})

	examples := map[string][]string{}
	exLimit := exampleConstructs
	if len(exLimit) > maxExampleConstructs {
		exLimit = exLimit[:maxExampleConstructs]
	}
	for _, construct := range exLimit {
		results, err := r.store.QueryMMR(ctx,
			construct+" syntax example", construct,
			r.opts.ExamplesPerSection, r.opts.MMRLambda)
		if err != nil {
			return nil, fmt.Errorf("example query for %q: %w", construct, err)
		}
		if len(results) == 0 {
			continue
		}
		texts := make([]string, 0, len(results))
		for _, res := range results {
			texts = append(texts, res.Content)
		}
		examples[construct] = texts
	}

	ruleTexts := make([]string, 0, len(allRules))
	for _, rule := range allRules {
		ruleTexts = append(ruleTexts, rule.Content)
	}

	return &Result{
		Rules:    ruleTexts,
		Examples: examples,
		Stats: Stats{
			RulesRetrieved:    len(ruleTexts),
			ExampleTypes:      len(examples),
			ConstructsQueried: len(allConstructs),
		},
	}, nil
}
