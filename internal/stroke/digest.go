// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package stroke

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Digest computes the canonical content digest of an ordered stroke list.
//
// The canonical byte form is built from geometry only, in stroke order:
// a stroke count, then per stroke a point count followed by the x, y and
// pressure values of every point as IEEE-754 big-endian bits. Timestamps,
// tilt, color and width never enter the digest, so two captures of identical
// geometry hash identically regardless of when or how they were drawn.
// Stroke order is significant: reordered strokes produce a different digest.
func Digest(strokes []Stroke) string {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(strokes)))
	h.Write(buf[:])

	for _, s := range strokes {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s.Points)))
		h.Write(buf[:])

		for _, p := range s.Points {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.X))
			h.Write(buf[:])
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Y))
			h.Write(buf[:])
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Pressure))
			h.Write(buf[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
