package rag

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Artifact file names inside the index directory.
const (
	VectorsFile = "index.bin"
	TextsFile   = "texts.json"
	SourcesFile = "sources.json"
)

var indexMagic = [8]byte{'M', 'N', 'R', 'A', 'I', 'D', 'X', '1'}

// Index is the loaded artifact: unit vectors plus texts and sources aligned by row.
// It is read-only after construction and safe for concurrent searches.
type Index struct {
	Model   string
	Dim     int
	vectors []float32
	texts   []string
	sources []string
}

// Hit is one search result. ID is -1 for padding when the index holds fewer
// vectors than requested.
type Hit struct {
	ID    int
	Score float64
}

// NewIndex assembles an index from aligned rows. Every vector must have the same length.
func NewIndex(model string, vectors [][]float32, texts, sources []string) (*Index, error) {
	if len(vectors) != len(texts) || len(texts) != len(sources) {
		return nil, fmt.Errorf("%w: %d vectors, %d texts, %d sources", ErrIndexCorrupt, len(vectors), len(texts), len(sources))
	}
	idx := &Index{Model: model, texts: texts, sources: sources}
	if len(vectors) > 0 {
		idx.Dim = len(vectors[0])
	}
	idx.vectors = make([]float32, 0, len(vectors)*idx.Dim)
	for i, v := range vectors {
		if len(v) != idx.Dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrIndexCorrupt, i, len(v), idx.Dim)
		}
		idx.vectors = append(idx.vectors, v...)
	}
	return idx, nil
}

// Len returns the number of rows.
func (idx *Index) Len() int { return len(idx.texts) }

// Chunk returns row id.
func (idx *Index) Chunk(id int) Chunk {
	return Chunk{Text: idx.texts[id], Source: idx.sources[id]}
}

func (idx *Index) vector(id int) []float32 {
	return idx.vectors[id*idx.Dim : (id+1)*idx.Dim]
}

// Search scores every row by inner product with query and returns exactly k
// hits in descending score order, ties going to the lower id.
func (idx *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if idx.Len() > 0 && len(query) != idx.Dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.Dim)
	}
	hits := make([]Hit, idx.Len())
	for i := range hits {
		hits[i] = Hit{ID: i, Score: Dot(query, idx.vector(i))}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, Hit{ID: -1, Score: math.Inf(-1)})
	}
	return hits, nil
}

// rename is swapped in tests to simulate a failed publish.
var rename = os.Rename

// WriteIndex stores idx in dir. The three files are written to a staging
// directory next to dir, which then replaces dir in one rename. If publishing
// fails the previous artifact is put back, so readers never see files from
// two different builds.
func WriteIndex(dir string, idx *Index) error {
	dir = filepath.Clean(dir)
	parent, base := filepath.Dir(dir), filepath.Base(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	var vec bytes.Buffer
	if err := encodeVectors(&vec, idx); err != nil {
		return err
	}
	texts, err := json.Marshal(idx.texts)
	if err != nil {
		return fmt.Errorf("encode texts: %w", err)
	}
	sources, err := json.Marshal(idx.sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+base+".staging-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("create staging directory: %w", err)
	}
	files := []struct {
		name string
		data []byte
	}{
		{VectorsFile, vec.Bytes()},
		{TextsFile, texts},
		{SourcesFile, sources},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(staging, f.name), f.data, 0o644); err != nil {
			_ = os.RemoveAll(staging)
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return publishDir(staging, dir)
}

// publishDir moves staging to dir, setting any existing dir aside first and
// restoring it when the move fails.
func publishDir(staging, dir string) error {
	previous := ""
	switch _, err := os.Stat(dir); {
	case err == nil:
		previous = staging + ".previous"
		if err := rename(dir, previous); err != nil {
			_ = os.RemoveAll(staging)
			return fmt.Errorf("set aside previous index: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		_ = os.RemoveAll(staging)
		return fmt.Errorf("stat index directory: %w", err)
	}

	if err := rename(staging, dir); err != nil {
		if previous != "" {
			if rerr := rename(previous, dir); rerr != nil {
				return fmt.Errorf("publish index: %w (previous index left at %s: %v)", err, previous, rerr)
			}
		}
		_ = os.RemoveAll(staging)
		return fmt.Errorf("publish index: %w", err)
	}
	if previous != "" {
		_ = os.RemoveAll(previous)
	}
	return nil
}

func encodeVectors(w io.Writer, idx *Index) error {
	if len(idx.Model) > math.MaxUint16 {
		return fmt.Errorf("model id too long: %d bytes", len(idx.Model))
	}
	header := []any{
		indexMagic,
		uint32(idx.Dim),
		uint64(idx.Len()),
		uint16(len(idx.Model)),
		[]byte(idx.Model),
		idx.vectors,
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("encode vectors: %w", err)
		}
	}
	return nil
}

// LoadIndex reads the artifact in dir. When model is non-empty the index must
// have been built with that embedding model.
func LoadIndex(dir, model string) (*Index, error) {
	for _, name := range []string{VectorsFile, TextsFile, SourcesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s not found in %s (run `manara index`)", ErrIndexMissing, name, dir)
			}
			return nil, err
		}
	}

	idx, err := readVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, err
	}
	if err := readStrings(filepath.Join(dir, TextsFile), &idx.texts); err != nil {
		return nil, err
	}
	if err := readStrings(filepath.Join(dir, SourcesFile), &idx.sources); err != nil {
		return nil, err
	}
	rows := len(idx.vectors)
	if idx.Dim > 0 {
		rows /= idx.Dim
	}
	if rows != len(idx.texts) || len(idx.texts) != len(idx.sources) {
		return nil, fmt.Errorf("%w: %d vectors, %d texts, %d sources", ErrIndexCorrupt, rows, len(idx.texts), len(idx.sources))
	}
	if model != "" && idx.Model != model {
		return nil, fmt.Errorf("%w: index uses %q, embedder uses %q", ErrModelMismatch, idx.Model, model)
	}
	return idx, nil
}

func readVectors(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var head struct {
		Magic [8]byte
		Dim   uint32
		Count uint64
		NameN uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrIndexCorrupt, err)
	}
	if head.Magic != indexMagic {
		return nil, fmt.Errorf("%w: bad magic in %s", ErrIndexCorrupt, path)
	}
	name := make([]byte, head.NameN)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: read model id: %v", ErrIndexCorrupt, err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	want := uint64(head.Dim) * head.Count
	headerLen := uint64(len(indexMagic)) + 4 + 8 + 2 + uint64(head.NameN)
	if uint64(info.Size()) != headerLen+want*4 {
		return nil, fmt.Errorf("%w: %s holds %d bytes, header promises %d vectors of dimension %d",
			ErrIndexCorrupt, path, info.Size(), head.Count, head.Dim)
	}
	vectors := make([]float32, want)
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", ErrIndexCorrupt, err)
	}
	return &Index{Model: string(name), Dim: int(head.Dim), vectors: vectors}, nil
}

func readStrings(path string, out *[]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, filepath.Base(path), err)
	}
	return nil
}
