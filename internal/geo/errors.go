// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geo

import "errors"

var (
	// ErrDegenerateFrame is returned when a reference frame has zero width or height.
	ErrDegenerateFrame = errors.New("reference frame has zero width or height")

	// ErrEmptyAnchorSet is returned when no anchors are available and the default frame
	// fallback is disabled.
	ErrEmptyAnchorSet = errors.New("no anchors available to build a reference frame")
)
