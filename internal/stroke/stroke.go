// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package stroke defines the captured ink model and its canonical geometry
// digest. A stroke is one continuous pen-down-to-pen-up gesture; strokes are
// immutable once captured.
package stroke

// Point is a single sampled pen position. X, Y and Pressure are the geometry;
// tilt and timestamp are device metadata carried for downstream consumers but
// excluded from the canonical digest.
type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure"`
	TiltX    float64 `json:"tilt_x,omitempty"`
	TiltY    float64 `json:"tilt_y,omitempty"`

	// Timestamp is milliseconds since epoch at capture time, zero if the
	// device did not report one.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Stroke is an ordered sequence of points. Color and width are rendering
// metadata and do not participate in the digest.
type Stroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

// PointCount returns the total number of points across all strokes.
func PointCount(strokes []Stroke) int {
	n := 0
	for _, s := range strokes {
		n += len(s.Points)
	}
	return n
}
