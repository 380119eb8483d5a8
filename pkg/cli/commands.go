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

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tapdeck/tapdeck/pkg/api/client"
	"github.com/tapdeck/tapdeck/pkg/api/models"
	"github.com/tapdeck/tapdeck/pkg/database"
	"github.com/tapdeck/tapdeck/pkg/payload"
	"golang.design/x/clipboard"
)

var ErrWriteFailed = errors.New("tag write failed")

const cancelTimeout = 2 * time.Second

// copyToClipboard is swapped out in tests.
var copyToClipboard = func(text string) error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	<-clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func encodeParams(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	return string(data), nil
}

func writeCard(ctx context.Context, c client.APIClient, out io.Writer, cardID string, url, copyPayload bool) error {
	p := models.ReaderWriteParams{CardID: cardID}
	if url {
		p.Dialect = payload.DeepLinkURL.String()
	}
	params, err := encodeParams(p)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out, "Present a tag to the reader...")
	raw, err := c.Call(ctx, models.MethodReadersWrite, params)
	if err != nil {
		return fmt.Errorf("error writing tag: %w", err)
	}
	resp, err := decodeResult[models.WriteResponse](raw)
	if err != nil {
		return err
	}
	if resp.Outcome != "success" {
		if resp.Message != "" {
			return fmt.Errorf("%w: %s: %s", ErrWriteFailed, resp.Outcome, resp.Message)
		}
		return fmt.Errorf("%w: %s", ErrWriteFailed, resp.Outcome)
	}

	_, _ = fmt.Fprintf(out, "Written: %s\n", resp.Payload)
	if copyPayload {
		if err := copyToClipboard(resp.Payload); err != nil {
			log.Warn().Err(err).Msg("could not copy payload")
			_, _ = fmt.Fprintf(out, "Could not copy to clipboard: %v\n", err)
		}
	}
	return nil
}

type waitResult struct {
	err error
	raw string
}

func readTag(ctx context.Context, c client.APIClient, out io.Writer) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	res := make(chan waitResult, 1)
	go func() {
		raw, err := c.WaitNotification(waitCtx, 0, models.NotificationScanObservation)
		res <- waitResult{raw: raw, err: err}
	}()

	params, err := encodeParams(models.ScanStartParams{Mode: "test"})
	if err != nil {
		return err
	}
	if _, err := c.Call(ctx, models.MethodScanStart, params); err != nil {
		return fmt.Errorf("error starting scan: %w", err)
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer ccancel()
		if _, err := c.Call(cctx, models.MethodScanCancel, ""); err != nil {
			log.Debug().Err(err).Msg("cancelling scan")
		}
	}()

	_, _ = fmt.Fprintln(out, "Present a tag to the reader...")
	var r waitResult
	select {
	case r = <-res:
	case <-ctx.Done():
		return fmt.Errorf("waiting for tag: %w", ctx.Err())
	}
	if r.err != nil {
		return fmt.Errorf("waiting for tag: %w", r.err)
	}

	obs, err := decodeResult[models.ScanObservationParams](r.raw)
	if err != nil {
		return err
	}
	switch {
	case obs.Payload != "":
		_, _ = fmt.Fprintln(out, obs.Payload)
	case obs.Error != "":
		_, _ = fmt.Fprintf(out, "%s: %s\n", obs.Kind, obs.Error)
	default:
		_, _ = fmt.Fprintln(out, obs.Kind)
	}
	return nil
}

func openLink(ctx context.Context, c client.APIClient, out io.Writer, link string) error {
	params, err := encodeParams(models.ResolveParams{Payload: link})
	if err != nil {
		return err
	}
	raw, err := c.Call(ctx, models.MethodResolve, params)
	if err != nil {
		return fmt.Errorf("error opening link: %w", err)
	}
	card, err := decodeResult[database.Card](raw)
	if err != nil {
		return err
	}
	name := card.Name
	if name == "" {
		name = card.ID
	}
	_, _ = fmt.Fprintf(out, "Playing %s\n", name)
	return nil
}

func exportLibrary(ctx context.Context, c client.APIClient, path string) error {
	raw, err := c.Call(ctx, models.MethodLibraryExport, "")
	if err != nil {
		return fmt.Errorf("error exporting library: %w", err)
	}
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		return fmt.Errorf("error writing backup: %w", err)
	}
	return nil
}

func importLibrary(ctx context.Context, c client.APIClient, out io.Writer, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	if err != nil {
		return fmt.Errorf("error reading backup: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s: %w", path, database.ErrInvalidExport)
	}

	raw, err := c.Call(ctx, models.MethodLibraryImport, string(data))
	if err != nil {
		return fmt.Errorf("error importing library: %w", err)
	}
	resp, err := decodeResult[models.ImportResponse](raw)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Imported %d cards, %d tracks, %d tag mappings\n", resp.Cards, resp.Tracks, resp.UIDs)
	return nil
}

func callAPI(ctx context.Context, c client.APIClient, out io.Writer, arg string) error {
	method, params, _ := strings.Cut(arg, ":")
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return fmt.Errorf("error calling API: %w", err)
	}
	_, _ = fmt.Fprintln(out, resp)
	return nil
}
