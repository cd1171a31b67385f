package retrieval

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"jacref/internal/extractor"
	"jacref/internal/rules"

	_ "github.com/mattn/go-sqlite3"
)

const exampleUpsertBatchSize = 500

// Store holds both retrieval collections in one SQLite database: rules
// persist across runs, examples are dropped and recreated every run.
type Store struct {
	db       *sql.DB
	embedder Embedder
}

// ScoredRule is one rule-collection query result.
type ScoredRule struct {
	Content        string
	Category       string
	Priority       int
	Score          float64
	TopicIDs       []string
	ConstructTypes []string
}

// ScoredExample is one example-collection query result.
type ScoredExample struct {
	Content       string
	ConstructType string
	SourceFile    string
	Score         float64
}

// NewStore creates or opens the retrieval database at path.
func NewStore(path string, embedder Embedder) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, embedder: embedder}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init retrieval schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rule_nuggets (
			id TEXT PRIMARY KEY,
			content TEXT,
			topic_ids TEXT,
			construct_types TEXT,
			priority INTEGER,
			category TEXT,
			embedding BLOB
		);`,
		`CREATE TABLE IF NOT EXISTS code_examples (
			id TEXT PRIMARY KEY,
			content TEXT,
			construct_type TEXT,
			source_file TEXT,
			line_count INTEGER,
			keywords TEXT,
			embedding BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_examples_construct ON code_examples(construct_type);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// IsIndexed reports whether any rule nugget exists, so process start can skip
// re-embedding an already populated rule collection.
func (s *Store) IsIndexed(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rule_nuggets").Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// IndexRules embeds and upserts nuggets keyed by id. Re-indexing the same id
// replaces its row, never duplicates.
func (s *Store) IndexRules(ctx context.Context, nuggets []rules.RuleNugget) (int, error) {
	if len(nuggets) == 0 {
		return 0, nil
	}

	docs := make([]string, len(nuggets))
	for i, n := range nuggets {
		docs[i] = n.Content
	}
	embeddings, err := s.embedder.Embed(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("embed rules: %w", err)
	}
	if len(embeddings) != len(nuggets) {
		return 0, fmt.Errorf("rule embedding count mismatch: got %d, expected %d", len(embeddings), len(nuggets))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rule_nuggets (id, content, topic_ids, construct_types, priority, category, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content=excluded.content,
			topic_ids=excluded.topic_ids,
			construct_types=excluded.construct_types,
			priority=excluded.priority,
			category=excluded.category,
			embedding=excluded.embedding
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, n := range nuggets {
		blob, err := encodeVector(embeddings[i])
		if err != nil {
			return 0, err
		}
		if _, err := stmt.Exec(
			n.ID, n.Content,
			strings.Join(n.TopicIDs, ","),
			strings.Join(n.ConstructTypes, ","),
			n.Priority, n.Category, blob,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(nuggets), nil
}

// ResetExamples drops the example collection. Called once per run before
// re-indexing, because example relevance tracks the current corpus.
func (s *Store) ResetExamples(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM code_examples")
	return err
}

// IndexExamples embeds and stores examples grouped by construct type,
// writing in batches. Returns how many were indexed.
func (s *Store) IndexExamples(ctx context.Context, examples map[string][]extractor.CodeExample) (int, error) {
	type row struct {
		id            string
		doc           string
		constructType string
		sourceFile    string
		lineCount     int
		keywords      string
	}

	var all []row
	constructs := make([]string, 0, len(examples))
	for ct := range examples {
		constructs = append(constructs, ct)
	}
	sort.Strings(constructs)

	idx := 0
	for _, ct := range constructs {
		for _, ex := range examples[ct] {
			idx++
			all = append(all, row{
				id:            fmt.Sprintf("src-%s-%04d", ct, idx),
				doc:           fmt.Sprintf("[%s] %s", ct, ex.Code),
				constructType: ct,
				sourceFile:    ex.SourceFile,
				lineCount:     ex.LineCount,
				keywords:      strings.Join(ex.Keywords, ","),
			})
		}
	}
	if len(all) == 0 {
		return 0, nil
	}

	docs := make([]string, len(all))
	for i, r := range all {
		docs[i] = r.doc
	}
	embeddings, err := s.embedder.Embed(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("embed examples: %w", err)
	}
	if len(embeddings) != len(all) {
		return 0, fmt.Errorf("example embedding count mismatch: got %d, expected %d", len(embeddings), len(all))
	}

	for start := 0; start < len(all); start += exampleUpsertBatchSize {
		end := start + exampleUpsertBatchSize
		if end > len(all) {
			end = len(all)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO code_examples (id, content, construct_type, source_file, line_count, keywords, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content=excluded.content,
				construct_type=excluded.construct_type,
				source_file=excluded.source_file,
				line_count=excluded.line_count,
				keywords=excluded.keywords,
				embedding=excluded.embedding
		`)
		if err != nil {
			tx.Rollback()
			return 0, err
		}

		for i := start; i < end; i++ {
			blob, err := encodeVector(embeddings[i])
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, err
			}
			r := all[i]
			if _, err := stmt.Exec(r.id, r.doc, r.constructType, r.sourceFile, r.lineCount, r.keywords, blob); err != nil {
				stmt.Close()
				tx.Rollback()
				return 0, err
			}
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return 0, err
		}
	}

	return len(all), nil
}

// QueryByTopic ranks rule nuggets for one topic. The composite score is the
// cosine similarity to "<topic> <constructs>" plus boosts: +0.3 when the
// nugget carries the topic, +0.2 when its construct set intersects the
// query's, +0.1 when priority is 1.
func (s *Store) QueryByTopic(ctx context.Context, topicID string, constructTypes []string, limit int) ([]ScoredRule, error) {
	queryText := topicID + " " + strings.Join(constructTypes, " ")
	vecs, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed rule query: %w", err)
	}
	queryVec := vecs[0]

	rows, err := s.db.QueryContext(ctx,
		"SELECT content, topic_ids, construct_types, priority, category, embedding FROM rule_nuggets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	querySet := make(map[string]bool, len(constructTypes))
	for _, ct := range constructTypes {
		querySet[ct] = true
	}

	var out []ScoredRule
	for rows.Next() {
		var content, topicIDs, constructs, category string
		var priority int
		var blob []byte
		if err := rows.Scan(&content, &topicIDs, &constructs, &priority, &category, &blob); err != nil {
			return nil, err
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			continue
		}

		topics := splitTags(topicIDs)
		ructs := splitTags(constructs)

		boost := 0.0
		if containsTag(topics, topicID) {
			boost += 0.3
		}
		if intersects(ructs, querySet) {
			boost += 0.2
		}
		if priority == 1 {
			boost += 0.1
		}

		out = append(out, ScoredRule{
			Content:        content,
			Category:       category,
			Priority:       priority,
			Score:          cosineSimilarity(queryVec, embedding) + boost,
			TopicIDs:       topics,
			ConstructTypes: ructs,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasConstructType reports whether any example of the given type is indexed.
func (s *Store) HasConstructType(ctx context.Context, constructType string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM code_examples WHERE construct_type = ? LIMIT 1", constructType).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// exampleCandidate pairs an indexed example with its stored embedding for
// MMR selection.
type exampleCandidate struct {
	example   ScoredExample
	embedding []float32
}

// fetchCandidates returns up to fetchK nearest examples to queryVec. The
// construct-type filter applies only when at least one such example exists.
func (s *Store) fetchCandidates(ctx context.Context, queryVec []float32, constructType string, fetchK int) ([]exampleCandidate, error) {
	query := "SELECT content, construct_type, source_file, embedding FROM code_examples"
	var args []any
	if constructType != "" {
		ok, err := s.HasConstructType(ctx, constructType)
		if err != nil {
			return nil, err
		}
		if ok {
			query += " WHERE construct_type = ?"
			args = append(args, constructType)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []exampleCandidate
	for rows.Next() {
		var content, ct, sourceFile string
		var blob []byte
		if err := rows.Scan(&content, &ct, &sourceFile, &blob); err != nil {
			return nil, err
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			continue
		}
		candidates = append(candidates, exampleCandidate{
			example: ScoredExample{
				Content:       content,
				ConstructType: ct,
				SourceFile:    sourceFile,
				Score:         cosineSimilarity(queryVec, embedding),
			},
			embedding: embedding,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].example.Score > candidates[j].example.Score
	})
	if fetchK > 0 && len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}
	return candidates, nil
}

// QueryMMR returns up to k diverse examples of a construct type: the
// nearest 5k candidates re-ranked by Maximal Marginal Relevance.
func (s *Store) QueryMMR(ctx context.Context, query, constructType string, k int, lambda float64) ([]ScoredExample, error) {
	vecs, err := s.embedder.Embed(ctx, []string{fmt.Sprintf("[%s] %s", constructType, query)})
	if err != nil {
		return nil, fmt.Errorf("embed example query: %w", err)
	}
	queryVec := vecs[0]

	candidates, err := s.fetchCandidates(ctx, queryVec, constructType, k*5)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	relevance := make([]float64, len(candidates))
	embeddings := make([][]float32, len(candidates))
	for i, c := range candidates {
		relevance[i] = c.example.Score
		embeddings[i] = c.embedding
	}

	selected := applyMMR(embeddings, relevance, k, lambda)
	out := make([]ScoredExample, 0, len(selected))
	for _, idx := range selected {
		out = append(out, candidates[idx].example)
	}
	return out, nil
}

func encodeVector(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func splitTags(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func intersects(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
