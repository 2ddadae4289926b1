package storage

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/vjranagit/lkext/pkg/types"
)

// Label names accepted by Index.Find
const (
	LabelAuthor  = "author"
	LabelSector  = "sector"
	LabelExpTime = "exp_time"
)

// Index is an in-memory entry index with an inverted label index
type Index struct {
	mu sync.RWMutex
	// Maps path fingerprint to entry
	entries map[uint64]types.Entry
	// Maps object id to fingerprints
	byID map[int64][]uint64
	// Inverted index: label name -> label value -> fingerprints
	labelIndex map[string]map[string][]uint64
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		entries:    make(map[uint64]types.Entry),
		byID:       make(map[int64][]uint64),
		labelIndex: make(map[string]map[string][]uint64),
	}
}

// Add adds an entry and returns its fingerprint. Adding the same path twice
// is a no-op.
func (idx *Index) Add(e types.Entry) uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fp := xxhash.Sum64String(e.Path)
	if _, exists := idx.entries[fp]; exists {
		return fp
	}
	idx.entries[fp] = e
	idx.byID[e.TICID] = append(idx.byID[e.TICID], fp)

	for name, value := range entryLabels(e) {
		if idx.labelIndex[name] == nil {
			idx.labelIndex[name] = make(map[string][]uint64)
		}
		idx.labelIndex[name][value] = append(idx.labelIndex[name][value], fp)
	}
	return fp
}

// Find returns the entries of an object matching every selector, ordered
// by path
func (idx *Index) Find(ticid int64, selectors map[string]string) []types.Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := slices.Clone(idx.byID[ticid])
	for name, value := range selectors {
		if len(result) == 0 {
			break
		}
		valueMap, ok := idx.labelIndex[name]
		if !ok {
			return nil
		}
		result = intersect(result, valueMap[value])
	}

	out := make([]types.Entry, 0, len(result))
	for _, fp := range result {
		out = append(out, idx.entries[fp])
	}
	slices.SortFunc(out, func(a, b types.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Has reports whether any entry is recorded for ticid
func (idx *Index) Has(ticid int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID[ticid]) > 0
}

// Count returns the number of indexed entries
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Clear clears the index
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[uint64]types.Entry)
	idx.byID = make(map[int64][]uint64)
	idx.labelIndex = make(map[string]map[string][]uint64)
}

func entryLabels(e types.Entry) map[string]string {
	return map[string]string{
		LabelAuthor:  e.Author,
		LabelSector:  strconv.Itoa(e.Sector),
		LabelExpTime: strconv.Itoa(e.ExpTime),
	}
}

// intersect finds common elements in two slices
func intersect(a, b []uint64) []uint64 {
	a = slices.Clone(a)
	b = slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)

	result := make([]uint64, 0)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}
	return result
}
