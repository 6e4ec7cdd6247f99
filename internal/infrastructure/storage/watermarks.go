package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FakeNewsScanner/internal/domain"
)

type watermarkRow struct {
	Scope   string `db:"scope"`
	LastRun int64  `db:"last_run"`
	Run     string `db:"run"`
}

func (r watermarkRow) toWatermark() (domain.CrawlWatermark, error) {
	w := domain.CrawlWatermark{Scope: r.Scope, LastRun: time.Unix(r.LastRun, 0).UTC()}
	if r.Run != "" {
		if err := json.Unmarshal([]byte(r.Run), &w.Run); err != nil {
			return domain.CrawlWatermark{}, fmt.Errorf("watermark %s run: %w", r.Scope, err)
		}
	}
	return w, nil
}

// LoadWatermark returns the stored boundary of a scope.
func (s *Store) LoadWatermark(ctx context.Context, scope string) (domain.CrawlWatermark, bool, error) {
	var row watermarkRow
	err := s.get(ctx, &row, s.sb.Select("scope", "last_run", "run").From("crawl_watermarks").Where(sq.Eq{"scope": scope}))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CrawlWatermark{}, false, nil
	}
	if err != nil {
		return domain.CrawlWatermark{}, false, fmt.Errorf("load watermark %s: %w", scope, err)
	}
	w, err := row.toWatermark()
	if err != nil {
		return domain.CrawlWatermark{}, false, err
	}
	return w, true, nil
}

// SaveWatermark upserts the boundary of a scope.
func (s *Store) SaveWatermark(ctx context.Context, w domain.CrawlWatermark) error {
	run, err := json.Marshal(w.Run)
	if err != nil {
		return fmt.Errorf("encode watermark run: %w", err)
	}

	stmt := s.sb.Insert("crawl_watermarks").
		Columns("scope", "last_run", "run", "updated_at").
		Values(w.Scope, w.LastRun.Unix(), string(run), time.Now().Unix()).
		Suffix("ON CONFLICT (scope) DO UPDATE SET last_run = excluded.last_run, run = excluded.run, updated_at = excluded.updated_at")

	if _, err := s.exec(ctx, s.db, stmt); err != nil {
		return fmt.Errorf("save watermark %s: %w", w.Scope, err)
	}
	return nil
}

// ListWatermarks returns every stored boundary ordered by scope.
func (s *Store) ListWatermarks(ctx context.Context) ([]domain.CrawlWatermark, error) {
	var rows []watermarkRow
	if err := s.selectAll(ctx, &rows, s.sb.Select("scope", "last_run", "run").From("crawl_watermarks").OrderBy("scope")); err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}

	out := make([]domain.CrawlWatermark, 0, len(rows))
	for _, r := range rows {
		w, err := r.toWatermark()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
