// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/baretag/baretag-tracker/internal/model"
)

// ErrUnknownKind is returned when decoding a payload for a kind the feed does not know.
var ErrUnknownKind = errors.New("unknown snapshot kind")

// Decode validates a JSON payload of the given kind and wraps it into an Update stamped with
// source, the current time and ttl.
func Decode(kind Kind, source string, ttl time.Duration, data []byte) (Update, error) {
	update := Update{
		Kind:   kind,
		Source: source,
		At:     time.Now(),
		TTL:    ttl,
	}

	switch kind {
	case KindAnchors:
		anchors, err := model.DecodeAnchors(data)
		if err != nil {
			return update, err
		}
		update.Anchors = anchors
	case KindTags:
		tags, err := model.DecodeTags(data)
		if err != nil {
			return update, err
		}
		update.Tags = tags
	case KindUser:
		user, err := model.DecodeUser(data)
		if err != nil {
			return update, err
		}
		update.User = &user
	case KindBoundary:
		boundary, err := model.DecodeBoundary(data)
		if err != nil {
			return update, err
		}
		update.Boundary = &boundary
	default:
		return update, fmt.Errorf("failed to decode %q payload: %w", kind, ErrUnknownKind)
	}
	return update, nil
}

// ParseKind converts a name into a Kind.
func ParseKind(name string) (Kind, error) {
	for _, kind := range Kinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownKind)
}
