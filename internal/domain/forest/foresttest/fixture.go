// Package foresttest provides a small hand-built forest over the employee
// features for use in tests across packages.
package foresttest

import (
	"bytes"
	"encoding/json"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/internal/domain/forest"
)

func leaf(stay, leave float64) forest.Node {
	return forest.Node{Feature: -1, Left: -1, Right: -1, Value: []float64{stay, leave}}
}

func split(feature int, threshold float64, left, right int) forest.Node {
	return forest.Node{Feature: feature, Threshold: threshold, Left: left, Right: right}
}

// Artifact returns a three tree forest.
//
// The default form vector scores STAY with [0.8833, 0.1167]; LeaveVector
// scores LEAVE with [0.2667, 0.7333].
func Artifact() forest.Artifact {
	return forest.Artifact{
		Format:       forest.Format,
		Version:      1,
		NFeatures:    features.Count,
		FeatureNames: features.Names(),
		Classes:      []int{0, 1},
		Trees: []forest.Tree{
			{Nodes: []forest.Node{
				split(features.SatisfactionLevel, 0.46, 1, 4),
				split(features.NumberProject, 2.5, 2, 3),
				leaf(10, 90),
				leaf(70, 30),
				leaf(95, 5),
			}},
			{Nodes: []forest.Node{
				split(features.TimeSpendCompany, 4.5, 1, 2),
				leaf(80, 20),
				split(features.AverageMonthlyHours, 215, 3, 4),
				leaf(60, 40),
				leaf(20, 80),
			}},
			{Nodes: []forest.Node{
				split(features.LastEvaluation, 0.57, 1, 2),
				leaf(50, 50),
				leaf(90, 10),
			}},
		},
		Metadata: map[string]string{"estimator": "fixture"},
	}
}

// LeaveVector is scored LEAVE by the fixture forest.
func LeaveVector() features.Vector {
	v, err := features.New(0.1, 5, 250, 2, 0.5)
	if err != nil {
		panic(err)
	}
	return v
}

// JSON returns the fixture artifact as plain JSON.
func JSON() []byte {
	b, err := json.Marshal(Artifact())
	if err != nil {
		panic(err)
	}
	return b
}

// Zstd returns the fixture artifact zstd compressed.
func Zstd() []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	defer enc.Close()
	return enc.EncodeAll(JSON(), nil)
}

// Gzip returns the fixture artifact gzip compressed.
func Gzip() []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(JSON()); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Forest returns the decoded fixture.
func Forest() *forest.Forest {
	f, err := forest.New(Artifact(), forest.WithFeatureNames(features.Names()))
	if err != nil {
		panic(err)
	}
	return f
}
