package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

const defaultListLimit = 50

var itemColumns = []string{
	"id", "title", "body", "links", "author", "author_created_utc", "author_karma",
	"community", "community_subscribers", "domain", "url", "permalink", "score",
	"upvote_ratio", "num_comments", "over_18", "spoiler", "locked", "flair",
	"created_utc", "crawled_at", "prediction",
}

type itemRow struct {
	ID                   string         `db:"id"`
	Title                string         `db:"title"`
	Body                 string         `db:"body"`
	Links                string         `db:"links"`
	Author               string         `db:"author"`
	AuthorCreatedUTC     sql.NullInt64  `db:"author_created_utc"`
	AuthorKarma          sql.NullInt64  `db:"author_karma"`
	Community            string         `db:"community"`
	CommunitySubscribers int64          `db:"community_subscribers"`
	Domain               sql.NullString `db:"domain"`
	URL                  string         `db:"url"`
	Permalink            string         `db:"permalink"`
	Score                int64          `db:"score"`
	UpvoteRatio          float64        `db:"upvote_ratio"`
	NumComments          int64          `db:"num_comments"`
	Over18               bool           `db:"over_18"`
	Spoiler              bool           `db:"spoiler"`
	Locked               bool           `db:"locked"`
	Flair                string         `db:"flair"`
	CreatedUTC           int64          `db:"created_utc"`
	CrawledAt            int64          `db:"crawled_at"`
	Prediction           sql.NullString `db:"prediction"`
}

func (r itemRow) toItem() (domain.Item, error) {
	item := domain.Item{
		ID:                   r.ID,
		Title:                r.Title,
		Body:                 r.Body,
		Author:               r.Author,
		Community:            r.Community,
		CommunitySubscribers: int(r.CommunitySubscribers),
		Domain:               r.Domain.String,
		URL:                  r.URL,
		Permalink:            r.Permalink,
		Score:                int(r.Score),
		UpvoteRatio:          r.UpvoteRatio,
		NumComments:          int(r.NumComments),
		Over18:               r.Over18,
		Spoiler:              r.Spoiler,
		Locked:               r.Locked,
		Flair:                r.Flair,
		CreatedAt:            time.Unix(r.CreatedUTC, 0).UTC(),
		CrawledAt:            time.Unix(r.CrawledAt, 0).UTC(),
	}
	if r.Links != "" {
		if err := json.Unmarshal([]byte(r.Links), &item.Links); err != nil {
			return domain.Item{}, fmt.Errorf("item %s links: %w", r.ID, err)
		}
	}
	if r.AuthorCreatedUTC.Valid {
		at := time.Unix(r.AuthorCreatedUTC.Int64, 0).UTC()
		item.AuthorCreatedAt = &at
	}
	if r.AuthorKarma.Valid {
		karma := int(r.AuthorKarma.Int64)
		item.AuthorKarma = &karma
	}
	if r.Prediction.Valid && r.Prediction.String != "" {
		p, err := domain.UnmarshalPrediction([]byte(r.Prediction.String))
		if err != nil {
			return domain.Item{}, fmt.Errorf("item %s prediction: %w", r.ID, err)
		}
		item.Prediction = p
	}
	return item, nil
}

func toItems(rows []itemRow) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		item, err := r.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ExistingIDs returns the subset of ids already stored.
func (s *Store) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var found []string
	if err := s.selectAll(ctx, &found, s.sb.Select("id").From("items").Where(sq.Eq{"id": ids})); err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}

// InsertItems stores items that do not exist yet and returns them. Existing
// rows are left untouched.
func (s *Store) InsertItems(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	inserted := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.CrawledAt.IsZero() {
			item.CrawledAt = now
		}
		stmt, err := s.insertItem(item)
		if err != nil {
			return nil, err
		}
		n, err := s.exec(ctx, tx, stmt)
		if err != nil {
			return nil, fmt.Errorf("insert item %s: %w", item.ID, err)
		}
		if n > 0 {
			inserted = append(inserted, item)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

func (s *Store) insertItem(item domain.Item) (sq.InsertBuilder, error) {
	links, err := json.Marshal(item.Links)
	if err != nil {
		return sq.InsertBuilder{}, fmt.Errorf("encode links: %w", err)
	}
	if item.Links == nil {
		links = []byte("[]")
	}

	var authorCreated, authorKarma sql.NullInt64
	if item.AuthorCreatedAt != nil {
		authorCreated = sql.NullInt64{Int64: item.AuthorCreatedAt.Unix(), Valid: true}
	}
	if item.AuthorKarma != nil {
		authorKarma = sql.NullInt64{Int64: int64(*item.AuthorKarma), Valid: true}
	}

	columns := []string{
		"id", "title", "body", "links", "author", "author_created_utc", "author_karma",
		"community", "community_subscribers", "domain", "url", "permalink", "score",
		"upvote_ratio", "num_comments", "over_18", "spoiler", "locked", "flair",
		"created_utc", "crawled_at",
	}
	values := []any{
		item.ID, item.Title, item.Body, string(links), item.Author, authorCreated, authorKarma,
		item.Community, item.CommunitySubscribers, sql.NullString{String: item.Domain, Valid: item.Domain != ""},
		item.URL, item.Permalink, item.Score,
		item.UpvoteRatio, item.NumComments, item.Over18, item.Spoiler, item.Locked, item.Flair,
		item.CreatedAt.Unix(), item.CrawledAt.Unix(),
	}

	if item.Prediction != nil {
		raw, err := domain.MarshalPrediction(item.Prediction)
		if err != nil {
			return sq.InsertBuilder{}, err
		}
		v := item.Prediction.Result()
		columns = append(columns, "prediction_label", "prediction_confidence", "prediction_kind", "prediction", "predicted_at")
		values = append(values, string(v.Label), v.Confidence, string(item.Prediction.Kind()), string(raw), v.PredictedAt.Unix())
	}

	return s.sb.Insert("items").
		Columns(columns...).
		Values(values...).
		Suffix("ON CONFLICT (id) DO NOTHING"), nil
}

// GetItem loads one item by identifier.
func (s *Store) GetItem(ctx context.Context, id string) (domain.Item, error) {
	var row itemRow
	err := s.get(ctx, &row, s.sb.Select(itemColumns...).From("items").Where(sq.Eq{"id": id}))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return row.toItem()
}

// ListItems returns items newest first, continuing after filter.Before.
func (s *Store) ListItems(ctx context.Context, filter ports.ItemFilter) ([]domain.Item, error) {
	q := s.sb.Select(itemColumns...).From("items")
	if filter.Community != "" {
		q = q.Where(communityEq(filter.Community))
	}
	if filter.Label != "" {
		q = q.Where(sq.Eq{"prediction_label": string(filter.Label)})
	}
	if c := filter.Before; c != nil {
		at := c.CreatedAt.Unix()
		q = q.Where(sq.Or{
			sq.Lt{"created_utc": at},
			sq.And{sq.Eq{"created_utc": at}, sq.Lt{"id": c.ID}},
		})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	q = q.OrderBy("created_utc DESC", "id DESC").Limit(uint64(limit))

	var rows []itemRow
	if err := s.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return toItems(rows)
}

// ListUnpredicted returns the newest items without a prediction.
func (s *Store) ListUnpredicted(ctx context.Context, limit int) ([]domain.Item, error) {
	q := s.sb.Select(itemColumns...).From("items").
		Where(sq.Eq{"prediction_label": nil}).
		OrderBy("created_utc DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	var rows []itemRow
	if err := s.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list unpredicted: %w", err)
	}
	return toItems(rows)
}

// communityEq matches community names case-insensitively.
func communityEq(community string) sq.Sqlizer {
	return sq.Expr("LOWER(community) = ?", strings.ToLower(community))
}

// CountItems counts stored items, optionally within one community.
func (s *Store) CountItems(ctx context.Context, community string) (int, error) {
	q := s.sb.Select("COUNT(*)").From("items")
	if community != "" {
		q = q.Where(communityEq(community))
	}
	var n int
	if err := s.get(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// LatestCreatedAt returns the newest creation time stored for a community.
func (s *Store) LatestCreatedAt(ctx context.Context, community string) (time.Time, bool, error) {
	q := s.sb.Select("MAX(created_utc)").From("items")
	if community != "" {
		q = q.Where(communityEq(community))
	}
	var latest sql.NullInt64
	if err := s.get(ctx, &latest, q); err != nil {
		return time.Time{}, false, fmt.Errorf("latest item: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(latest.Int64, 0).UTC(), true, nil
}

// SavePrediction attaches a prediction. Without force an existing prediction
// is kept and domain.ErrAlreadyPredicted is returned.
func (s *Store) SavePrediction(ctx context.Context, itemID string, prediction domain.Prediction, force bool) error {
	raw, err := domain.MarshalPrediction(prediction)
	if err != nil {
		return err
	}
	v := prediction.Result()

	upd := s.sb.Update("items").SetMap(map[string]any{
		"prediction_label":      string(v.Label),
		"prediction_confidence": v.Confidence,
		"prediction_kind":       string(prediction.Kind()),
		"prediction":            string(raw),
		"predicted_at":          v.PredictedAt.Unix(),
	}).Where(sq.Eq{"id": itemID})
	if !force {
		upd = upd.Where(sq.Eq{"prediction_label": nil})
	}

	n, err := s.exec(ctx, s.db, upd)
	if err != nil {
		return fmt.Errorf("save prediction %s: %w", itemID, err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := s.get(ctx, &exists, s.sb.Select("COUNT(*)").From("items").Where(sq.Eq{"id": itemID})); err != nil {
		return fmt.Errorf("check item %s: %w", itemID, err)
	}
	if exists == 0 {
		return fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	return fmt.Errorf("item %s: %w", itemID, domain.ErrAlreadyPredicted)
}
