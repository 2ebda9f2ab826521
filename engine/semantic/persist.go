package semantic

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// snapshot is the gob wire form of an index.
type snapshot struct {
	Dim  int
	IDs  []string
	Vecs [][]float32
}

// Save writes the current index contents to w. The snapshot is taken
// atomically; concurrent insertions after the snapshot are not included.
func (x *Index) Save(w io.Writer) error {
	st := x.state.Load()
	snap := snapshot{Dim: x.dim, IDs: st.ids, Vecs: st.vecs}
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("semantic: encode snapshot: %w", err)
	}
	return nil
}

// Load reads an index previously written by Save.
func Load(r io.Reader) (*Index, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("semantic: decode snapshot: %w", err)
	}
	idx, err := NewIndex(snap.Dim)
	if err != nil {
		return nil, err
	}
	idx.state.Store(&indexState{ids: snap.IDs, vecs: snap.Vecs})
	return idx, nil
}

// SaveFile writes the index to path, replacing any existing file.
func (x *Index) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("semantic: create %s: %w", path, err)
	}
	if err := x.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads an index from path.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("semantic: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
