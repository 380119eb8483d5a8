/*
Tapdeck
Copyright (c) 2026 The Tapdeck Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of Tapdeck.

Tapdeck is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Tapdeck is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Tapdeck.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package audio plays the tracks of a card through the default output
// device.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// SampleRate is the output rate every track is resampled to.
const SampleRate = beep.SampleRate(48000)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Detect returns the MIME type of an audio file from its content.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsSupported reports whether data can be decoded for playback.
func IsSupported(data []byte) bool {
	_, err := decoderFor(mimetype.Detect(data))
	return err == nil
}

type decoder func(data []byte) (beep.StreamSeekCloser, beep.Format, error)

func decoderFor(mt *mimetype.MIME) (decoder, error) {
	switch {
	case mt.Is("audio/mpeg"):
		return func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
			return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		}, nil
	case mt.Is("audio/wav"):
		return func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
			return wav.Decode(bytes.NewReader(data))
		}, nil
	case mt.Is("audio/ogg"):
		return func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
			return vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
		}, nil
	case mt.Is("audio/flac"):
		return func(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
			return flac.Decode(bytes.NewReader(data))
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
	}
}

// Decode picks a decoder by sniffing the content, so track names and
// stored MIME types are never trusted.
func Decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := decoderFor(mimetype.Detect(data))
	if err != nil {
		return nil, beep.Format{}, err
	}
	s, format, err := dec(data)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode audio: %w", err)
	}
	return s, format, nil
}
