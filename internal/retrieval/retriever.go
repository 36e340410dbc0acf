// Package retrieval ranks corpus entries against a query by lexical
// overlap and specificity, within a result count and character budget.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/mode"
)

const truncationMarker = "\n[truncated]"

// Passage is one ranked, rendered corpus entry.
type Passage struct {
	Mode      mode.Mode `json:"mode"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Truncated bool      `json:"truncated,omitempty"`
}

// Corpora exposes the current snapshots. corpus.Store satisfies it.
type Corpora interface {
	PolicySnapshot() *corpus.Snapshot[corpus.Document]
	SchemaSnapshot() *corpus.Snapshot[corpus.SchemaObject]
	DocSnapshot() *corpus.Snapshot[corpus.DocFile]
}

type Options struct {
	MaxResults int
	MaxChars   int
	// Restricted objects never appear in results. When Allowed is set,
	// only listed objects may appear. Entries match a bare name, a
	// schema-qualified name or the full object ID, case-insensitively.
	Restricted []string
	Allowed    []string
}

type Retriever struct {
	corpora    Corpora
	opts       Options
	restricted map[string]bool
	allowed    map[string]bool
}

func New(c Corpora, opts Options) *Retriever {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Retriever{
		corpora:    c,
		opts:       opts,
		restricted: lowerSet(opts.Restricted),
		allowed:    lowerSet(opts.Allowed),
	}
}

type field struct {
	text   string
	weight float64
}

type candidate struct {
	fields []field
	// prepared per field
	lower  []string
	tokens []map[string]bool
}

type hit struct {
	idx   int
	score float64
}

// Search returns passages most relevant first; ties keep corpus order.
// No match yields an empty slice. maxResults <= 0 uses the configured cap.
func (r *Retriever) Search(m mode.Mode, query string, maxResults int) []Passage {
	if maxResults <= 0 {
		maxResults = r.opts.MaxResults
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []Passage{}
	}

	var out []Passage
	switch m {
	case mode.Policy:
		out = r.searchPolicies(terms, maxResults)
	case mode.Schema:
		out = r.searchSchema(terms, maxResults)
	case mode.Documentation:
		out = r.searchDocs(terms, maxResults)
	default:
		return []Passage{}
	}
	return r.fit(out)
}

// Resolve picks the enabled mode whose best passage scores highest.
// Ties go to the earlier mode in mode.Concrete; no match at all falls back
// to the first enabled mode.
func (r *Retriever) Resolve(query string, enabled mode.Set) mode.Mode {
	terms := queryTerms(query)
	best, bestScore := mode.Auto, 0.0
	for _, m := range mode.Concrete {
		if !enabled.Enabled(m) {
			continue
		}
		if best == mode.Auto {
			best = m
		}
		if len(terms) == 0 {
			continue
		}
		var hits []hit
		switch m {
		case mode.Policy:
			hits = rank(policyCandidates(r.corpora.PolicySnapshot().Items), terms)
		case mode.Schema:
			items := r.visibleSchema(r.corpora.SchemaSnapshot().Items)
			hits = rank(schemaCandidates(items), terms)
		case mode.Documentation:
			hits = rank(docCandidates(r.corpora.DocSnapshot().Items), terms)
		}
		if len(hits) > 0 && hits[0].score > bestScore {
			best, bestScore = m, hits[0].score
		}
	}
	if best == mode.Auto {
		return mode.Policy
	}
	return best
}

func (r *Retriever) searchPolicies(terms []string, limit int) []Passage {
	items := r.corpora.PolicySnapshot().Items
	hits := rank(policyCandidates(items), terms)
	out := make([]Passage, 0, min(limit, len(hits)))
	for _, h := range head(hits, limit) {
		d := items[h.idx]
		out = append(out, Passage{
			Mode:   mode.Policy,
			ID:     d.ID,
			Title:  d.Title,
			Source: d.URL,
			Text:   renderPolicy(d),
			Score:  h.score,
		})
	}
	return out
}

func (r *Retriever) searchSchema(terms []string, limit int) []Passage {
	items := r.visibleSchema(r.corpora.SchemaSnapshot().Items)
	hits := rank(schemaCandidates(items), terms)
	out := make([]Passage, 0, min(limit, len(hits)))
	for _, h := range head(hits, limit) {
		o := items[h.idx]
		out = append(out, Passage{
			Mode:  mode.Schema,
			ID:    o.ID,
			Title: o.QualifiedName(),
			Text:  renderSchemaObject(o),
			Score: h.score,
		})
	}
	return out
}

func (r *Retriever) searchDocs(terms []string, limit int) []Passage {
	items := r.corpora.DocSnapshot().Items
	hits := rank(docCandidates(items), terms)
	out := make([]Passage, 0, min(limit, len(hits)))
	for _, h := range head(hits, limit) {
		d := items[h.idx]
		out = append(out, Passage{
			Mode:   mode.Documentation,
			ID:     d.ID,
			Title:  d.Title,
			Source: d.ID,
			Text:   renderDoc(d, terms),
			Score:  h.score,
		})
	}
	return out
}

// visibleSchema applies the restricted and allowed object lists.
func (r *Retriever) visibleSchema(items []corpus.SchemaObject) []corpus.SchemaObject {
	if len(r.restricted) == 0 && len(r.allowed) == 0 {
		return items
	}
	out := make([]corpus.SchemaObject, 0, len(items))
	for _, o := range items {
		keys := []string{strings.ToLower(o.Name), strings.ToLower(o.QualifiedName()), strings.ToLower(o.ID)}
		if anyIn(keys, r.restricted) {
			continue
		}
		if len(r.allowed) > 0 && !anyIn(keys, r.allowed) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// fit enforces the character budget by dropping the lowest-ranked
// passages. A lone passage over budget is cut and marked, or dropped when
// the budget cannot hold the marker.
func (r *Retriever) fit(ps []Passage) []Passage {
	budget := r.opts.MaxChars
	if budget <= 0 {
		return ps
	}
	used := 0
	for i := range ps {
		n := len(ps[i].Text)
		if used+n <= budget {
			used += n
			continue
		}
		if i > 0 {
			return ps[:i]
		}
		if budget <= len(truncationMarker) {
			return ps[:0]
		}
		ps[0].Text = truncate(ps[0].Text, budget)
		ps[0].Truncated = true
		return ps[:1]
	}
	return ps
}

func truncate(s string, budget int) string {
	return clip(s, budget-len(truncationMarker)) + truncationMarker
}

// clip returns the longest prefix of s within n bytes that ends on a rune
// boundary.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func prepare(c *candidate) {
	c.lower = make([]string, len(c.fields))
	c.tokens = make([]map[string]bool, len(c.fields))
	for i, f := range c.fields {
		c.lower[i] = strings.ToLower(f.text)
		c.tokens[i] = tokenSet(f.text)
	}
}

// rank scores every candidate. Each query term contributes its best field
// match (whole token 1.0, substring 0.5, times the field weight) scaled by
// an inverse document frequency so rarer terms count more.
func rank(cands []candidate, terms []string) []hit {
	if len(cands) == 0 {
		return nil
	}
	for i := range cands {
		prepare(&cands[i])
	}

	match := make([][]float64, len(cands))
	df := make([]int, len(terms))
	for i, c := range cands {
		match[i] = make([]float64, len(terms))
		for t, term := range terms {
			best := 0.0
			for f := range c.fields {
				var s float64
				switch {
				case c.tokens[f][term]:
					s = 1.0
				case strings.Contains(c.lower[f], term):
					s = 0.5
				}
				if v := s * c.fields[f].weight; v > best {
					best = v
				}
			}
			match[i][t] = best
			if best > 0 {
				df[t]++
			}
		}
	}

	n := float64(len(cands))
	var hits []hit
	for i := range cands {
		score := 0.0
		for t := range terms {
			if match[i][t] == 0 {
				continue
			}
			score += match[i][t] * (1 + math.Log(n/float64(df[t])))
		}
		if score > 0 {
			hits = append(hits, hit{idx: i, score: score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	return hits
}

func head(hits []hit, n int) []hit {
	if len(hits) > n {
		return hits[:n]
	}
	return hits
}

func lowerSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = true
		}
	}
	return set
}

func anyIn(keys []string, set map[string]bool) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}
