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

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

// Output plays a stream at SampleRate. Play blocks until the stream ends,
// returning nil, or ctx is cancelled, returning context.Canceled.
type Output interface {
	Play(ctx context.Context, s beep.Streamer) error
}

// MalgoOutput plays through the system default device using miniaudio.
type MalgoOutput struct{}

func NewMalgoOutput() *MalgoOutput {
	return &MalgoOutput{}
}

func (*MalgoOutput) Play(ctx context.Context, streamer beep.Streamer) error {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	if malgoCtx == nil {
		return errors.New("malgo context is nil after initialization")
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	// F32 avoids miniaudio's S16 to S32 conversion on PulseAudio.
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	done := make(chan struct{})
	var (
		mu       syncutil.Mutex
		finished bool
		samples  [][2]float64
	)

	onSamples := func(out, _ []byte, frameCount uint32) {
		mu.Lock()
		defer mu.Unlock()

		if finished {
			return
		}
		if ctx.Err() != nil {
			finished = true
			close(done)
			return
		}

		if len(samples) < int(frameCount) {
			samples = make([][2]float64, frameCount)
		}

		n, ok := streamer.Stream(samples[:frameCount])
		if !ok || n == 0 {
			finished = true
			close(done)
			return
		}

		offset := 0
		for i := range n {
			binary.LittleEndian.PutUint32(out[offset:], math.Float32bits(float32(samples[i][0])))
			binary.LittleEndian.PutUint32(out[offset+4:], math.Float32bits(float32(samples[i][1])))
			offset += 8
		}
		clear(out[offset:])
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		finished = true
		mu.Unlock()
	}

	if err := device.Stop(); err != nil {
		log.Warn().Err(err).Msg("failed to stop audio device")
	}

	if ctx.Err() != nil {
		return context.Canceled
	}
	return nil
}
