package cluster

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/maxonary/ai-trend-clustering/internal/topicmodel"
)

const (
	// DefaultNgramMax is the longest n-gram extracted as a term.
	DefaultNgramMax = 2

	// DefaultMinDF drops terms found in fewer documents.
	DefaultMinDF = 5

	// DefaultTopTerms is the number of ranked terms kept per topic.
	DefaultTopTerms = 10
)

// Vectorizer extracts n-gram terms from documents and ranks them per topic
// with class-based TF-IDF.
type Vectorizer struct {
	NgramMax int
	MinDF    int
	TopTerms int
	Logger   *slog.Logger
}

// Tokenize lowercases text, splits it into word tokens of at least two
// characters, and drops English stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// ngrams returns all n-grams of tokens for n in [1, max].
func ngrams(tokens []string, max int) []string {
	if max < 1 {
		max = 1
	}
	out := make([]string, 0, len(tokens)*max)
	for n := 1; n <= max; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Analyze returns the n-gram terms of text.
func (v Vectorizer) Analyze(text string) []string {
	return ngrams(Tokenize(text), v.NgramMax)
}

// vocabulary returns the terms found in at least minDF documents.
func vocabulary(docTerms [][]string, minDF int) map[string]struct{} {
	df := make(map[string]int)
	for _, terms := range docTerms {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	vocab := make(map[string]struct{})
	for t, n := range df {
		if n >= minDF {
			vocab[t] = struct{}{}
		}
	}
	return vocab
}

// RankTerms computes the ranked term list of every topic in assignments.
// The weight of term t in class c is tf(t,c)/|c| * log(1 + A/f(t)), where
// A is the average number of terms per class and f(t) the frequency of t
// across all classes.
func (v Vectorizer) RankTerms(texts []string, assignments []int) map[int][]topicmodel.Term {
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topN := v.TopTerms
	if topN <= 0 {
		topN = DefaultTopTerms
	}

	docTerms := make([][]string, len(texts))
	for i, text := range texts {
		docTerms[i] = v.Analyze(text)
	}

	minDF := max(v.MinDF, 1)
	vocab := vocabulary(docTerms, minDF)
	if len(vocab) == 0 && minDF > 1 && len(texts) > 0 {
		logger.Warn("min_df leaves no terms, falling back to 1", "min_df", minDF, "documents", len(texts))
		vocab = vocabulary(docTerms, 1)
	}

	tf := make(map[int]map[string]float64)
	classSize := make(map[int]float64)
	termFreq := make(map[string]float64)
	for i, terms := range docTerms {
		c := assignments[i]
		if tf[c] == nil {
			tf[c] = make(map[string]float64)
		}
		for _, t := range terms {
			if _, ok := vocab[t]; !ok {
				continue
			}
			tf[c][t]++
			classSize[c]++
			termFreq[t]++
		}
	}

	ranked := make(map[int][]topicmodel.Term, len(tf))
	if len(tf) == 0 {
		return ranked
	}

	var total float64
	for _, n := range classSize {
		total += n
	}
	avg := total / float64(len(tf))

	for c, freqs := range tf {
		terms := make([]topicmodel.Term, 0, len(freqs))
		for t, n := range freqs {
			w := n / classSize[c] * math.Log(1+avg/termFreq[t])
			terms = append(terms, topicmodel.Term{Text: t, Weight: w})
		}
		sort.Slice(terms, func(i, j int) bool {
			if terms[i].Weight != terms[j].Weight {
				return terms[i].Weight > terms[j].Weight
			}
			return terms[i].Text < terms[j].Text
		})
		if len(terms) > topN {
			terms = terms[:topN]
		}
		ranked[c] = terms
	}
	return ranked
}
