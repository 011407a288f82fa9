// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package cache

import (
	"strings"
)

// Pattern is a search term with a caller-defined label.
type Pattern struct {
	Text  string
	Label string
}

// Match is a pattern occurrence in a searched text.
type Match struct {
	Pattern  string
	Label    string
	Index    int // position of the pattern in the Matcher's pattern list
	Position int // byte offset in the lower-cased text
}

// Matcher is a case-insensitive Aho-Corasick automaton. It finds every
// occurrence of a fixed set of substrings in O(n + m + z) time, where n is
// the text length, m the total pattern length and z the number of matches.
//
// A Matcher is built once by NewMatcher and is read-only afterwards, so it
// is safe for concurrent use without locking.
//
//	m := cache.NewMatcher([]cache.Pattern{
//	    {Text: "sqlmap", Label: "scanner"},
//	    {Text: "bot", Label: "blocked"},
//	})
//	match, ok := m.FirstByPattern("sqlmap/1.0 (https://sqlmap.org)")
type Matcher struct {
	root     *acNode
	patterns []Pattern
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

// NewMatcher builds an automaton over patterns. Empty pattern texts are ignored.
func NewMatcher(patterns []Pattern) *Matcher {
	m := &Matcher{root: newACNode()}

	for _, p := range patterns {
		if p.Text == "" {
			continue
		}
		m.patterns = append(m.patterns, Pattern{Text: strings.ToLower(p.Text), Label: p.Label})
	}

	for i, p := range m.patterns {
		node := m.root
		for _, ch := range p.Text {
			next, ok := node.children[ch]
			if !ok {
				next = newACNode()
				node.children[ch] = next
			}
			node = next
		}
		node.output = append(node.output, i)
	}

	m.linkFailures()
	return m
}

// linkFailures wires failure links breadth-first and merges outputs along them.
func (m *Matcher) linkFailures() {
	queue := make([]*acNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// scan walks text and calls emit for each match until emit returns false.
func (m *Matcher) scan(text string, emit func(Match) bool) {
	if len(m.patterns) == 0 {
		return
	}

	lower := strings.ToLower(text)
	node := m.root
	for i, ch := range lower {
		for node != m.root && node.children[ch] == nil {
			node = node.failure
		}
		next, ok := node.children[ch]
		if !ok {
			continue
		}
		node = next

		end := i + len(string(ch))
		for _, idx := range node.output {
			p := m.patterns[idx]
			if !emit(Match{Pattern: p.Text, Label: p.Label, Index: idx, Position: end - len(p.Text)}) {
				return
			}
		}
	}
}

// FirstByPattern returns the match whose pattern appears earliest in the
// pattern list, which gives callers list-order precedence rather than
// text-position precedence.
func (m *Matcher) FirstByPattern(text string) (Match, bool) {
	var (
		best Match
		ok   bool
	)
	m.scan(text, func(match Match) bool {
		if !ok || match.Index < best.Index {
			best, ok = match, true
		}
		return best.Index != 0
	})
	return best, ok
}

// Len returns the number of patterns in the automaton.
func (m *Matcher) Len() int {
	return len(m.patterns)
}
