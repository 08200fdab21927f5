package find

// State caches the matches for the active document and tracks the
// selected one. The zero value is ready to use.
type State struct {
	docID         int
	query         string
	caseSensitive bool
	valid         bool

	matches  []Match
	selected int
}

// Update recomputes the matches when the document, query or case mode
// changed since the last call. It reports whether a search ran.
func (s *State) Update(docID int, text, query string, caseSensitive bool) bool {
	if s.valid && s.docID == docID && s.query == query && s.caseSensitive == caseSensitive {
		return false
	}
	s.docID = docID
	s.query = query
	s.caseSensitive = caseSensitive
	s.valid = true
	s.matches = Find(text, query, caseSensitive)
	s.selected = 0
	return true
}

// Invalidate forces the next Update to search again, e.g. after a reload.
func (s *State) Invalidate() {
	s.valid = false
}

// Query returns the last searched query.
func (s *State) Query() string { return s.query }

// CaseSensitive returns the last searched case mode.
func (s *State) CaseSensitive() bool { return s.caseSensitive }

// Matches returns the current matches.
func (s *State) Matches() []Match { return s.matches }

// Index returns the selected position, or -1 without matches.
func (s *State) Index() int {
	if len(s.matches) == 0 {
		return -1
	}
	return s.selected
}

// Selected returns the selected match.
func (s *State) Selected() (Match, bool) {
	if len(s.matches) == 0 {
		return Match{}, false
	}
	return s.matches[s.selected], true
}

// Next selects the following match, wrapping to the first.
func (s *State) Next() (Match, bool) {
	if len(s.matches) == 0 {
		return Match{}, false
	}
	s.selected = (s.selected + 1) % len(s.matches)
	return s.matches[s.selected], true
}

// Prev selects the preceding match, wrapping to the last.
func (s *State) Prev() (Match, bool) {
	if len(s.matches) == 0 {
		return Match{}, false
	}
	s.selected = (s.selected + len(s.matches) - 1) % len(s.matches)
	return s.matches[s.selected], true
}
