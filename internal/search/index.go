// Package search maintains an in-memory keyword index over approved
// document text. The index backs AI query grounding; it is rebuilt from
// storage at startup and updated asynchronously as reviews complete.
package search

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Match is a scored index hit.
type Match struct {
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

type entry struct {
	title  string
	text   string
	tokens map[string]int
	length int
}

// KeywordIndex is a concurrency-safe term-frequency index.
type KeywordIndex struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewKeywordIndex builds an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{entries: make(map[string]*entry)}
}

// Add indexes or reindexes a document's text.
func (idx *KeywordIndex) Add(docID, title, text string) {
	tokens := tokenize(text)
	length := 0
	for _, n := range tokens {
		length += n
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[docID] = &entry{
		title:  title,
		text:   text,
		tokens: tokens,
		length: length,
	}
}

// Remove drops a document from the index. Removing an unknown id is a
// no-op.
func (idx *KeywordIndex) Remove(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, docID)
}

// Len returns the number of indexed documents.
func (idx *KeywordIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Query scores all documents against the query terms and returns the
// top k matches, best first. An empty query returns no matches.
func (idx *KeywordIndex) Query(query string, k int) []Match {
	terms := tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]Match, 0, len(idx.entries))
	for docID, e := range idx.entries {
		if e.length == 0 {
			continue
		}
		score := 0.0
		var first string
		for term := range terms {
			if n, ok := e.tokens[term]; ok {
				score += float64(n) / float64(e.length)
				if first == "" {
					first = term
				}
			}
		}
		if score == 0 {
			continue
		}
		matches = append(matches, Match{
			DocID:   docID,
			Title:   e.title,
			Score:   score,
			Snippet: snippet(e.text, first),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocID < matches[j].DocID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func tokenize(text string) map[string]int {
	tokens := make(map[string]int)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens[f]++
	}
	return tokens
}

// snippet returns a short window of text around the first occurrence of
// the term. Window edges are pulled back to rune boundaries so a
// multi-byte character is never cut in half.
func snippet(text, term string) string {
	const window = 120
	lower := strings.ToLower(text)
	pos := strings.Index(lower, term)
	if pos < 0 {
		pos = 0
	}
	start := pos - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	out := strings.TrimSpace(text[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}
