// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DecodeAnchors decodes and validates a JSON array of anchors.
func DecodeAnchors(data []byte) ([]Anchor, error) {
	var anchors []Anchor
	if err := json.Unmarshal(data, &anchors); err != nil {
		return nil, fmt.Errorf("failed to decode anchors: %w", wrapSyntax(err))
	}
	for _, anchor := range anchors {
		if err := anchor.Validate(); err != nil {
			return nil, err
		}
	}
	return anchors, nil
}

// DecodeTags decodes and validates tags. The payload may be a single tag object or an array.
func DecodeTags(data []byte) ([]Tag, error) {
	var tags []Tag
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var tag Tag
		if err := json.Unmarshal(trimmed, &tag); err != nil {
			return nil, fmt.Errorf("failed to decode tag: %w", wrapSyntax(err))
		}
		tags = []Tag{tag}
	} else if err := json.Unmarshal(trimmed, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", wrapSyntax(err))
	}
	for _, tag := range tags {
		if err := tag.Validate(); err != nil {
			return nil, err
		}
	}
	return tags, nil
}

// DecodeUser decodes and validates a user location.
func DecodeUser(data []byte) (UserLocation, error) {
	var user UserLocation
	if err := json.Unmarshal(data, &user); err != nil {
		return user, fmt.Errorf("failed to decode user location: %w", wrapSyntax(err))
	}
	return user, user.Validate()
}

// DecodeBoundary decodes and validates a boundary polygon.
func DecodeBoundary(data []byte) (Boundary, error) {
	var boundary Boundary
	if err := json.Unmarshal(data, &boundary); err != nil {
		return boundary, fmt.Errorf("failed to decode boundary: %w", wrapSyntax(err))
	}
	return boundary, boundary.Validate()
}

// Fingerprint hashes the JSON encoding of v. Equal values yield equal fingerprints, which lets
// pollers skip payloads that did not change.
func Fingerprint(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

// wrapSyntax marks malformed JSON as an invalid record unless the error already is one.
func wrapSyntax(err error) error {
	if errors.Is(err, ErrInvalidRecord) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
}
