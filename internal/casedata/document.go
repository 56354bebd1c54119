package casedata

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// DocumentSource serves case data from in-process documents, one nested
// document per case. Paths are dotted; numeric segments index into arrays,
// e.g. "documents.0.passportNumber".
type DocumentSource struct {
	mu    sync.RWMutex
	cases map[string]map[string]any
}

// NewDocumentSource creates an empty source.
func NewDocumentSource() *DocumentSource {
	return &DocumentSource{cases: make(map[string]map[string]any)}
}

// Put replaces the document for a case.
func (s *DocumentSource) Put(caseID string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[caseID] = doc
}

// Resolve never fails; unknown cases and paths are unavailable.
func (s *DocumentSource) Resolve(_ context.Context, caseID, sourcePath string) (any, bool, error) {
	s.mu.RLock()
	doc, ok := s.cases[caseID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, found := Lookup(doc, sourcePath)
	return v, found, nil
}

// Lookup walks a dotted path through nested maps and slices. A nil leaf is
// reported as not found.
func Lookup(doc map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}
