// Package names tracks sprite names for duplicate detection and alphabetical
// placement.
package names

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Registry maps case-insensitive name text to the tokens currently holding
// it. A name held by two or more tokens marks every holder duplicate.
type Registry[T comparable] struct {
	entries map[string]*entry[T]
	marked  map[T]bool
	onMark  func(token T, duplicate bool)
}

type entry[T comparable] struct {
	text    string
	holders []T
}

// NewRegistry returns an empty registry.
func NewRegistry[T comparable]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]*entry[T]),
		marked:  make(map[T]bool),
	}
}

// OnMark installs a callback invoked whenever a token's duplicate flag changes.
func (r *Registry[T]) OnMark(fn func(token T, duplicate bool)) {
	r.onMark = fn
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register records token as a holder of name. Blank names are ignored.
func (r *Registry[T]) Register(name string, token T) {
	k := key(name)
	if k == "" {
		return
	}
	e := r.entries[k]
	if e == nil {
		e = &entry[T]{text: strings.TrimSpace(name)}
		r.entries[k] = e
	}
	for _, h := range e.holders {
		if h == token {
			return
		}
	}
	e.holders = append(e.holders, token)
	if len(e.holders) < 2 {
		return
	}
	for _, h := range e.holders {
		r.mark(h, true)
	}
}

// Unregister removes token as a holder of name.
func (r *Registry[T]) Unregister(name string, token T) {
	k := key(name)
	e := r.entries[k]
	if e == nil {
		return
	}
	idx := -1
	for i, h := range e.holders {
		if h == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	e.holders = append(e.holders[:idx], e.holders[idx+1:]...)
	r.mark(token, false)
	switch len(e.holders) {
	case 0:
		delete(r.entries, k)
	case 1:
		r.mark(e.holders[0], false)
	}
}

func (r *Registry[T]) mark(token T, duplicate bool) {
	if r.marked[token] == duplicate {
		return
	}
	if duplicate {
		r.marked[token] = true
	} else {
		delete(r.marked, token)
	}
	if r.onMark != nil {
		r.onMark(token, duplicate)
	}
}

// Duplicate reports whether token currently shares its name with another.
func (r *Registry[T]) Duplicate(token T) bool {
	return r.marked[token]
}

// HasDuplicates reports whether any name has more than one holder.
func (r *Registry[T]) HasDuplicates() bool {
	return len(r.marked) > 0
}

// Duplicates returns the texts of every name held more than once, sorted.
func (r *Registry[T]) Duplicates() []string {
	var out []string
	for _, e := range r.entries {
		if len(e.holders) > 1 {
			out = append(out, e.text)
		}
	}
	sort.Strings(out)
	return out
}

// Holders returns the tokens holding name.
func (r *Registry[T]) Holders(name string) []T {
	e := r.entries[key(name)]
	if e == nil {
		return nil
	}
	return append([]T(nil), e.holders...)
}

// Len is the number of distinct names.
func (r *Registry[T]) Len() int { return len(r.entries) }

// Search returns registered names fuzzily matching query, best match first.
func (r *Registry[T]) Search(query string) []string {
	query = strings.TrimSpace(query)
	texts := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		texts = append(texts, e.text)
	}
	sort.Slice(texts, func(i, j int) bool {
		return strings.ToLower(texts[i]) < strings.ToLower(texts[j])
	})
	if query == "" {
		return texts
	}
	ranks := fuzzy.RankFindNormalizedFold(query, texts)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	out := make([]string, len(ranks))
	for i, rank := range ranks {
		out[i] = rank.Target
	}
	return out
}

// InsertIndex returns the index at which text belongs in keys so that every
// earlier key sorts at or before it and every later key after it, compared
// case-insensitively. Blank keys belong to unnamed items and never bound the
// slot. The key at index self (the item being repositioned) is not counted;
// pass -1 when the item is not among keys. The result indexes the list with
// self removed.
func InsertIndex(text string, keys []string, self int) int {
	text = strings.ToLower(text)
	index := 0
	for i, k := range keys {
		if i == self {
			continue
		}
		if k != "" && strings.ToLower(k) > text {
			return index
		}
		index++
	}
	return index
}
