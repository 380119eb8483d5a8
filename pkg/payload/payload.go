// Tapdeck
// Copyright (c) 2026 The Tapdeck Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Tapdeck.
//
// Tapdeck is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Tapdeck is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.

// Package payload converts card identifiers to and from the strings stored
// on NFC tags.
//
// Two dialects are written: a scheme-prefixed string (card://<id>) and a
// deep-link URL carrying the id in its "card" query parameter. Decoding is
// more forgiving and also accepts bare identifiers, fragment parameters and
// trailing path segments so that tags written by other tools still resolve.
package payload

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Scheme is the prefix of the plain dialect.
const Scheme = "card://"

// Param is the query (or fragment) parameter holding the identifier in the
// deep-link dialect.
const Param = "card"

var (
	ErrInvalidIdentifier = errors.New("invalid card identifier")
	ErrInvalidBase       = errors.New("invalid base address")
	ErrNoCandidate       = errors.New("no card candidate in payload")
	ErrUnknownDialect    = errors.New("unknown payload dialect")
)

type Dialect int

const (
	PlainOrPrefixed Dialect = iota
	DeepLinkURL
)

func (d Dialect) String() string {
	switch d {
	case PlainOrPrefixed:
		return "text"
	case DeepLinkURL:
		return "url"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// ParseDialect accepts the names used by the API and CLI.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "plain", "prefixed":
		return PlainOrPrefixed, nil
	case "url", "link", "deeplink":
		return DeepLinkURL, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDialect, s)
	}
}

// Encode builds the tag payload for identifier. The base address is only
// used by the DeepLinkURL dialect and must be an absolute URL.
func Encode(identifier string, dialect Dialect, base string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", ErrInvalidIdentifier
	}

	switch dialect {
	case PlainOrPrefixed:
		return Scheme + identifier, nil
	case DeepLinkURL:
		return encodeURL(identifier, base)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDialect, dialect)
	}
}

func encodeURL(identifier, base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBase, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidBase, base)
	}

	u.Fragment = ""
	u.RawFragment = ""

	value := escapeComponent(identifier)
	switch {
	case u.RawQuery == "":
		u.RawQuery = Param + "=" + value
	case u.Query().Has(Param):
		q := u.Query()
		q.Del(Param)
		u.RawQuery = q.Encode() + "&" + Param + "=" + value
	default:
		u.RawQuery = u.RawQuery + "&" + Param + "=" + value
	}

	return u.String(), nil
}

// escapeComponent percent-encodes s for use as a query value, writing spaces
// as %20 rather than '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Decode extracts a card identifier candidate from a raw payload. The
// candidate is not checked against the store; an empty candidate can be
// returned for a bare "card://" payload.
func Decode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrNoCandidate
	}

	lead := strings.TrimLeftFunc(raw, unicode.IsSpace)
	if rest, ok := strings.CutPrefix(lead, Scheme); ok {
		return rest, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed, nil
	}

	if id, ok := fromURL(u); ok {
		return id, nil
	}
	return "", ErrNoCandidate
}

func fromURL(u *url.URL) (string, bool) {
	if v := u.Query().Get(Param); v != "" {
		return v, true
	}

	if frag := u.EscapedFragment(); frag != "" {
		frag = strings.TrimPrefix(frag, "?")
		if q, err := url.ParseQuery(frag); err == nil {
			if v := q.Get(Param); v != "" {
				return v, true
			}
		}
	}

	segments := strings.Split(u.EscapedPath(), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			return segments[i], true
		}
		return seg, true
	}

	return "", false
}
