// Package search ranks catalogue questions against a free-text query.
//
// A document's score is the Jaccard similarity between its term set and the
// query's: |Q ∩ D| / |Q ∪ D|. Terms are lower-cased, accent-folded words with
// stop words removed, so "Café" and "cafe" meet. Ties go to the shorter text,
// then to the smaller id, which keeps results stable between calls.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one rankable text.
type Document struct {
	ID   string
	Text string
}

// Result is a matching document and its score in (0, 1].
type Result struct {
	ID    string
	Score float64
}

// DefaultStopwords are question words that carry no topical signal.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "do", "does", "explain", "how", "in", "is", "of",
	"the", "to", "what", "which", "who", "why",
}

var wordPattern = regexp.MustCompile(`\p{L}+\p{N}*`)

// Ranker scores documents against queries. It holds no per-call state and
// is safe for concurrent use.
type Ranker struct {
	stop map[string]bool
}

// NewRanker returns a Ranker ignoring the given stop words.
func NewRanker(stopwords ...string) *Ranker {
	r := &Ranker{stop: make(map[string]bool, len(stopwords))}
	for _, w := range stopwords {
		if w = fold(strings.TrimSpace(w)); w != "" {
			r.stop[w] = true
		}
	}
	return r
}

// Rank returns up to k documents sharing at least one term with query, best
// first. k <= 0 returns every match. A query without terms matches nothing.
func (r *Ranker) Rank(query string, docs []Document, k int) []Result {
	q := r.Terms(query)
	if len(q) == 0 || len(docs) == 0 {
		return nil
	}

	type hit struct {
		Result
		runes int
	}
	var hits []hit
	for _, d := range docs {
		terms := r.Terms(d.Text)
		shared := 0
		for t := range q {
			if terms[t] {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		score := float64(shared) / float64(len(q)+len(terms)-shared)
		hits = append(hits, hit{Result{d.ID, score}, utf8.RuneCountInString(d.Text)})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		switch {
		case a.Score != b.Score:
			return a.Score > b.Score
		case a.runes != b.runes:
			return a.runes < b.runes
		}
		return a.ID < b.ID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.Result
	}
	return out
}

// Terms returns the distinct non-stop-word terms of s.
func (r *Ranker) Terms(s string) map[string]bool {
	words := wordPattern.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if !r.stop[w] {
			out[w] = true
		}
	}
	return out
}

// fold lower-cases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.ToLower(s)
}
