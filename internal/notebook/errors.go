// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

package notebook

import "errors"

var (
	// ErrNotFound is returned for an unknown notebook id.
	ErrNotFound = errors.New("notebook not found")

	// ErrSectionNotFound is returned by partial retrieval when the id is
	// valid but the requested top-level section does not exist.
	ErrSectionNotFound = errors.New("section not found")

	// ErrCorruptedContent is returned when a metadata record exists but its
	// backing bytes are missing, undecompressable or undeserializable. The
	// store never silently returns partial data.
	ErrCorruptedContent = errors.New("corrupted notebook content")

	// ErrInvalidID is returned for ids that cannot name a storage directory.
	ErrInvalidID = errors.New("invalid notebook id")
)
