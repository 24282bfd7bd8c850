// Package forest decodes and evaluates serialized decision-forest
// classifiers.
//
// An artifact is a JSON document, optionally zstd or gzip compressed, that
// holds one or more binary decision trees. Each tree is a flat node list in
// pre-order: an internal node sends x[feature] <= threshold to its left
// child and everything else to its right child; a leaf carries per-class
// weights. The forest probability is the mean of the per-tree normalised
// leaf weights, and the predicted class is its argmax.
package forest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies the artifact layout understood by this package.
const Format = "decision_forest"

// maxDecodedSize caps decompressed artifacts.
const maxDecodedSize = 256 << 20

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Node is one entry of a tree. Feature is -1 on leaves.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node terminates traversal.
func (n Node) IsLeaf() bool { return n.Feature < 0 || n.Left < 0 }

// Tree is a pre-ordered node list rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Artifact is the serialized form of a Forest.
type Artifact struct {
	Format       string            `json:"format"`
	Version      int               `json:"version"`
	NFeatures    int               `json:"n_features"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	Classes      []int             `json:"classes"`
	Trees        []Tree            `json:"trees"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Forest is a validated, read-only classifier. It is safe for concurrent use.
type Forest struct {
	nFeatures int
	names     []string
	classes   []int
	trees     []Tree
	metadata  map[string]string
}

// Option tunes decoding.
type Option func(*decodeOptions)

type decodeOptions struct {
	featureNames []string
}

// WithFeatureNames requires the artifact to have been trained on exactly
// these columns in exactly this order. Artifacts that omit feature names
// are only checked for the column count.
func WithFeatureNames(names []string) Option {
	return func(o *decodeOptions) {
		o.featureNames = names
	}
}

// Decode parses a possibly compressed artifact blob.
func Decode(data []byte, opts ...Option) (*Forest, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	var a Artifact
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	return New(a, opts...)
}

// New validates an Artifact and builds a Forest from it.
func New(a Artifact, opts ...Option) (*Forest, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if a.Format != Format {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidArtifact, a.Format)
	}
	if a.NFeatures <= 0 {
		return nil, fmt.Errorf("%w: n_features must be positive", ErrInvalidArtifact)
	}
	if len(a.Classes) < 2 {
		return nil, fmt.Errorf("%w: need at least two classes, got %d", ErrInvalidArtifact, len(a.Classes))
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrInvalidArtifact)
	}
	if len(a.FeatureNames) > 0 && len(a.FeatureNames) != a.NFeatures {
		return nil, fmt.Errorf("%w: %d feature names for %d features", ErrInvalidArtifact, len(a.FeatureNames), a.NFeatures)
	}
	if o.featureNames != nil {
		if a.NFeatures != len(o.featureNames) {
			return nil, fmt.Errorf("%w: artifact has %d features, want %d", ErrFeatureCount, a.NFeatures, len(o.featureNames))
		}
		if len(a.FeatureNames) > 0 {
			for i, name := range o.featureNames {
				if a.FeatureNames[i] != name {
					return nil, fmt.Errorf("%w: feature %d is %q, want %q", ErrInvalidArtifact, i, a.FeatureNames[i], name)
				}
			}
		}
	}
	for i, t := range a.Trees {
		if err := validateTree(t, a.NFeatures, len(a.Classes)); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
	}

	f := &Forest{
		nFeatures: a.NFeatures,
		names:     append([]string(nil), a.FeatureNames...),
		classes:   append([]int(nil), a.Classes...),
		trees:     a.Trees,
		metadata:  make(map[string]string, len(a.Metadata)),
	}
	for k, v := range a.Metadata {
		f.metadata[k] = v
	}
	return f, nil
}

// validateTree checks node references point forward, which rules out
// cycles, and that every leaf is a usable class distribution.
func validateTree(t Tree, nFeatures, nClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Value) != nClasses {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), nClasses)
			}
			var sum float64
			for _, w := range n.Value {
				if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					return fmt.Errorf("leaf %d has invalid weight %v", i, w)
				}
				sum += w
			}
			if sum == 0 || math.IsInf(sum, 0) {
				return fmt.Errorf("leaf %d has unusable total weight %v", i, sum)
			}
			continue
		}
		if n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, nFeatures)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d has NaN threshold", i)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has children %d/%d out of range", i, n.Left, n.Right)
		}
	}
	return nil
}

func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidArtifact, err)
		}
		return out, nil
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidArtifact, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidArtifact, err)
		}
		if len(out) > maxDecodedSize {
			return nil, fmt.Errorf("%w: decompressed artifact exceeds %d bytes", ErrInvalidArtifact, maxDecodedSize)
		}
		return out, nil
	default:
		return data, nil
	}
}

// PredictProba returns the class distribution for x, ordered like Classes.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.nFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), f.nFeatures)
	}
	proba := make([]float64, len(f.classes))
	for _, t := range f.trees {
		leaf := t.leaf(x)
		var sum float64
		for _, w := range leaf.Value {
			sum += w
		}
		for c, w := range leaf.Value {
			proba[c] += w / sum
		}
	}
	n := float64(len(f.trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

// Predict returns the argmax class for x along with the distribution.
// Ties go to the earliest class.
func (f *Forest) Predict(x []float64) (int, []float64, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, nil, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.classes[best], proba, nil
}

func (t Tree) leaf(x []float64) Node {
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.IsLeaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Classes returns the class labels in probability order.
func (f *Forest) Classes() []int { return append([]int(nil), f.classes...) }

// FeatureNames returns the training column names, if the artifact had them.
func (f *Forest) FeatureNames() []string { return append([]string(nil), f.names...) }

// NumFeatures is the expected input width.
func (f *Forest) NumFeatures() int { return f.nFeatures }

// NumTrees is the number of estimators in the forest.
func (f *Forest) NumTrees() int { return len(f.trees) }

// Metadata returns a copy of the artifact metadata.
func (f *Forest) Metadata() map[string]string {
	out := make(map[string]string, len(f.metadata))
	for k, v := range f.metadata {
		out[k] = v
	}
	return out
}

// Artifact returns the serializable form of f.
func (f *Forest) Artifact() Artifact {
	return Artifact{
		Format:       Format,
		Version:      1,
		NFeatures:    f.nFeatures,
		FeatureNames: f.FeatureNames(),
		Classes:      f.Classes(),
		Trees:        f.trees,
		Metadata:     f.Metadata(),
	}
}

// Encode serializes f as uncompressed JSON.
func (f *Forest) Encode() ([]byte, error) {
	return json.Marshal(f.Artifact())
}
