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
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tapdeck/tapdeck/pkg/api/client"
	"github.com/tapdeck/tapdeck/pkg/api/models"
)

type cardRow struct {
	ID      string `csv:"id"`
	Name    string `csv:"name"`
	Created string `csv:"created"`
	Tracks  int    `csv:"tracks"`
	Missing int    `csv:"missing_tracks"`
	Bytes   int64  `csv:"bytes"`
}

func fetchRows(ctx context.Context, c client.APIClient) ([]cardRow, error) {
	raw, err := c.Call(ctx, models.MethodCards, "")
	if err != nil {
		return nil, fmt.Errorf("error listing cards: %w", err)
	}
	cards, err := decodeResult[models.CardsResponse](raw)
	if err != nil {
		return nil, err
	}
	raw, err = c.Call(ctx, models.MethodTracks, "")
	if err != nil {
		return nil, fmt.Errorf("error listing tracks: %w", err)
	}
	tracks, err := decodeResult[models.TracksResponse](raw)
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]int64, len(tracks.Tracks))
	for _, t := range tracks.Tracks {
		sizes[t.ID] = t.Size
	}

	rows := make([]cardRow, 0, len(cards.Cards))
	for _, card := range cards.Cards {
		row := cardRow{
			ID:      card.ID,
			Name:    card.Name,
			Tracks:  len(card.Tracks),
			Created: time.UnixMilli(card.Created).UTC().Format(time.RFC3339),
		}
		for _, id := range card.Tracks {
			size, ok := sizes[id]
			if !ok {
				row.Missing++
				continue
			}
			row.Bytes += size
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func listCards(ctx context.Context, c client.APIClient, out io.Writer, asCSV bool) error {
	rows, err := fetchRows(ctx, c)
	if err != nil {
		return err
	}
	if asCSV {
		if err := gocsv.Marshal(rows, out); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Tracks", "Size", "Created"})
	var total int64
	for _, r := range rows {
		tracks := fmt.Sprint(r.Tracks)
		if r.Missing > 0 {
			tracks = fmt.Sprintf("%d (%d missing)", r.Tracks, r.Missing)
		}
		created, _ := time.Parse(time.RFC3339, r.Created)
		t.AppendRow(table.Row{r.ID, r.Name, tracks, humanize.Bytes(uint64(max(r.Bytes, 0))), humanize.Time(created)})
		total += r.Bytes
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d cards", len(rows)), "", humanize.Bytes(uint64(max(total, 0))), ""})
	t.Render()
	return nil
}
