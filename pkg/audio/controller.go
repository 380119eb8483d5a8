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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/api/notifications"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/helpers/syncutil"
)

var (
	ErrEmptyCard      = errors.New("card has no tracks")
	ErrNothingPlaying = errors.New("nothing is playing")
)

const (
	StateStopped = "stopped"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// TrackSource loads track metadata and audio bytes.
type TrackSource interface {
	GetTrack(ctx context.Context, id string) (database.Track, error)
	GetTrackData(ctx context.Context, id string) ([]byte, error)
}

// VolumeLimits supplies the stored volume and its ceiling.
type VolumeLimits interface {
	Volume() float64
	MaxVolume() float64
	SetVolume(v float64)
}

type Status struct {
	State      string        `json:"state"`
	CardID     string        `json:"cardId,omitempty"`
	CardName   string        `json:"cardName,omitempty"`
	TrackID    string        `json:"trackId,omitempty"`
	TrackName  string        `json:"trackName,omitempty"`
	TrackIndex int           `json:"trackIndex"`
	TrackCount int           `json:"trackCount"`
	Position   time.Duration `json:"position"`
	Duration   time.Duration `json:"duration"`
	Volume     float64       `json:"volume"`
}

// guardedStream serialises access to the decoder chain between the output
// callback and control calls such as Seek and TogglePause.
type guardedStream struct {
	source beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	volume *effects.Volume
	format beep.Format
	mu     syncutil.Mutex
	closed bool
}

func (g *guardedStream) Stream(samples [][2]float64) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, false
	}
	return g.volume.Stream(samples)
}

func (g *guardedStream) Err() error {
	return g.source.Err()
}

func (g *guardedStream) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if err := g.source.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close audio stream")
	}
}

// applyVolume maps a linear gain in [0, 1] onto the logarithmic volume
// effect.
func applyVolume(v *effects.Volume, linear float64) {
	if linear <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(linear)
}

// Controller plays a card's tracks in order, advancing when a track ends
// and stopping after the last one.
type Controller struct {
	tracks  TrackSource
	out     Output
	limits  VolumeLimits
	ns      chan<- models.Notification
	card    *database.Card
	track   database.Track
	stream  *guardedStream
	cancel  context.CancelFunc
	index   int
	gen     uint64
	volume  float64
	mu      syncutil.Mutex
	playing bool
}

func NewController(
	tracks TrackSource,
	out Output,
	limits VolumeLimits,
	ns chan<- models.Notification,
) *Controller {
	return &Controller{
		tracks: tracks,
		out:    out,
		limits: limits,
		ns:     ns,
		volume: limits.Volume(),
	}
}

// StartCard replaces whatever is playing with the first track of card. A
// card without tracks stops playback and returns ErrEmptyCard.
func (c *Controller) StartCard(ctx context.Context, card database.Card) error {
	if len(card.Tracks) == 0 {
		c.Stop()
		return ErrEmptyCard
	}
	return c.play(ctx, card, 0)
}

func (c *Controller) play(ctx context.Context, card database.Card, index int) error {
	id := card.Tracks[index]
	track, err := c.tracks.GetTrack(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get track %s: %w", id, err)
	}
	data, err := c.tracks.GetTrackData(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load track %s: %w", id, err)
	}
	source, format, err := Decode(data)
	if err != nil {
		return fmt.Errorf("track %s: %w", id, err)
	}

	ctrl := &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, SampleRate, source)}
	vol := &effects.Volume{Streamer: ctrl, Base: 2}
	stream := &guardedStream{source: source, ctrl: ctrl, volume: vol, format: format}

	c.mu.Lock()
	prev := c.stopLocked()
	applyVolume(vol, c.volume)
	c.gen++
	gen := c.gen
	playCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.card = &card
	c.track = track
	c.index = index
	c.stream = stream
	c.playing = true
	c.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	log.Info().Str("card", card.ID).Int("index", index).Str("track", track.Name).Msg("playing track")
	notifications.PlaybackStarted(c.ns, models.PlaybackStartedParams{
		CardID:     card.ID,
		CardName:   card.Name,
		TrackID:    track.ID,
		TrackName:  track.Name,
		TrackIndex: index,
	})

	go c.run(playCtx, gen, stream)
	return nil
}

func (c *Controller) run(ctx context.Context, gen uint64, stream *guardedStream) {
	err := c.out.Play(ctx, stream)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("audio output failed")
		c.stopGen(gen)
		return
	}
	if streamErr := stream.Err(); streamErr != nil {
		log.Warn().Err(streamErr).Msg("audio stream ended with error")
	}
	c.advance(gen)
}

func (c *Controller) advance(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.card == nil {
		c.mu.Unlock()
		return
	}
	card := *c.card
	next := c.index + 1
	c.mu.Unlock()

	if next >= len(card.Tracks) {
		c.stopGen(gen)
		return
	}
	if err := c.play(context.Background(), card, next); err != nil {
		log.Error().Err(err).Msg("failed to advance to next track")
		c.stopGen(gen)
	}
}

// stopLocked clears the playback fields and returns the stream to close
// once the lock is released.
func (c *Controller) stopLocked() *guardedStream {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	stream := c.stream
	c.stream = nil
	c.card = nil
	c.track = database.Track{}
	c.index = 0
	c.playing = false
	return stream
}

func (c *Controller) stopGen(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	stream := c.stopLocked()
	c.mu.Unlock()

	if stream != nil {
		stream.close()
	}
	notifications.PlaybackStopped(c.ns)
}

// Stop ends playback. It is a no-op when nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.gen++
	stream := c.stopLocked()
	c.mu.Unlock()

	if stream != nil {
		stream.close()
	}
	notifications.PlaybackStopped(c.ns)
}

func (c *Controller) current() (database.Card, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.card == nil {
		return database.Card{}, 0, ErrNothingPlaying
	}
	return *c.card, c.index, nil
}

// Next skips to the following track, staying on the last one.
func (c *Controller) Next(ctx context.Context) error {
	card, index, err := c.current()
	if err != nil {
		return err
	}
	return c.play(ctx, card, min(index+1, len(card.Tracks)-1))
}

// Prev goes back one track, staying on the first one.
func (c *Controller) Prev(ctx context.Context) error {
	card, index, err := c.current()
	if err != nil {
		return err
	}
	return c.play(ctx, card, max(index-1, 0))
}

// TogglePause pauses or resumes the current track and reports whether it
// is now paused.
func (c *Controller) TogglePause() (bool, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return false, ErrNothingPlaying
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	stream.ctrl.Paused = !stream.ctrl.Paused
	return stream.ctrl.Paused, nil
}

// Seek moves to position within the current track, clamped to its length.
func (c *Controller) Seek(position time.Duration) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return ErrNothingPlaying
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()
	if stream.closed {
		return ErrNothingPlaying
	}
	n := stream.format.SampleRate.N(position)
	n = max(0, min(n, stream.source.Len()-1))
	if err := stream.source.Seek(n); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetVolume applies v capped at the configured maximum and returns the
// volume actually applied.
func (c *Controller) SetVolume(v float64) float64 {
	v = max(0, min(v, c.limits.MaxVolume()))
	c.limits.SetVolume(v)

	c.mu.Lock()
	c.volume = v
	stream := c.stream
	c.mu.Unlock()

	if stream != nil {
		stream.mu.Lock()
		applyVolume(stream.volume, v)
		stream.mu.Unlock()
	}
	return v
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{State: StateStopped, Volume: c.volume}
	stream := c.stream
	if c.card != nil {
		st.CardID = c.card.ID
		st.CardName = c.card.Name
		st.TrackCount = len(c.card.Tracks)
		st.TrackIndex = c.index
		st.TrackID = c.track.ID
		st.TrackName = c.track.Name
		st.State = StatePlaying
	}
	c.mu.Unlock()

	if stream != nil {
		stream.mu.Lock()
		if !stream.closed {
			rate := stream.format.SampleRate
			st.Position = rate.D(stream.source.Position())
			st.Duration = rate.D(stream.source.Len())
			if stream.ctrl.Paused {
				st.State = StatePaused
			}
		}
		stream.mu.Unlock()
	}
	return st
}
