package types

import (
	"path/filepath"
	"slices"
	"time"
)

// Entry is one light-curve file recognised by its naming convention
type Entry struct {
	TICID   int64  `json:"ticid"`
	Author  string `json:"author"`
	Sector  int    `json:"sector"`
	ExpTime int    `json:"exp_time"`
	Path    string `json:"file_path"`
}

// Name returns the bare file name of the entry
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// PathIndex maps an object id to the file paths recorded for it
type PathIndex map[int64][]string

// Add records path under id unless a file with the same name is already
// recorded for that id. It reports whether the path was added.
func (p PathIndex) Add(id int64, path string) bool {
	name := filepath.Base(path)
	for _, existing := range p[id] {
		if filepath.Base(existing) == name {
			return false
		}
	}
	p[id] = append(p[id], path)
	return true
}

// IDs returns the object ids in ascending order
func (p PathIndex) IDs() []int64 {
	ids := make([]int64, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Equal reports whether two indexes record the same path sets
func (p PathIndex) Equal(other PathIndex) bool {
	if len(p) != len(other) {
		return false
	}
	for id, paths := range p {
		theirs, ok := other[id]
		if !ok || len(theirs) != len(paths) {
			return false
		}
		a := slices.Clone(paths)
		b := slices.Clone(theirs)
		slices.Sort(a)
		slices.Sort(b)
		if !slices.Equal(a, b) {
			return false
		}
	}
	return true
}

// Updates lists, per object id, paths that appeared since an older snapshot
type Updates map[int64][]string

// Snapshot is a persisted scan of one root directory
type Snapshot struct {
	Root      string    `json:"root"`
	RootHash  string    `json:"root_hash"`
	CreatedAt time.Time `json:"created_at"`
	Index     PathIndex `json:"index"`
}

// UpdateReport records the difference between two consecutive snapshots
type UpdateReport struct {
	Root     string    `json:"root"`
	RootHash string    `json:"root_hash"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Updates  Updates   `json:"updates"`
}
