package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = sql.ErrNoRows

// Analysis is one finished pipeline run. Rows are written after the fact and
// are never used to answer a request.
type Analysis struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Source      string // http | telegram | console
	ChatID      int64
	ImageHash   string
	ImageMIME   string
	Provider    string
	VisionModel string
	TextModel   string
	Description string
	Analysis    string
	ElapsedMS   int64
}

type AnalysisRepo struct{ DB *sql.DB }

func NewAnalysisRepo(db *sql.DB) *AnalysisRepo { return &AnalysisRepo{DB: db} }

const schema = `
create table if not exists food_analyses (
  id           uuid primary key,
  created_at   timestamptz not null default now(),
  source       text not null,
  chat_id      bigint,
  image_hash   text not null,
  image_mime   text not null default '',
  provider     text not null,
  vision_model text not null,
  text_model   text not null,
  description  text not null,
  analysis     text not null,
  elapsed_ms   bigint not null default 0
);
create index if not exists food_analyses_chat_created_idx on food_analyses (chat_id, created_at desc);`

func (r *AnalysisRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Insert stores a. A zero ID is replaced with a fresh UUID and written back.
func (r *AnalysisRepo) Insert(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const q = `
insert into food_analyses (
  id, created_at, source, chat_id, image_hash, image_mime,
  provider, vision_model, text_model, description, analysis, elapsed_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, q,
		a.ID, a.CreatedAt, a.Source, a.ChatID, a.ImageHash, a.ImageMIME,
		a.Provider, a.VisionModel, a.TextModel, a.Description, a.Analysis, a.ElapsedMS,
	)
	return err
}

// Recent returns the newest analyses of a chat, newest first.
func (r *AnalysisRepo) Recent(ctx context.Context, chatID int64, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 5
	}
	const q = `
select id, created_at, source, coalesce(chat_id,0), image_hash, image_mime,
       provider, vision_model, text_model, description, analysis, elapsed_ms
from food_analyses
where chat_id = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Source, &a.ChatID, &a.ImageHash, &a.ImageMIME,
			&a.Provider, &a.VisionModel, &a.TextModel, &a.Description, &a.Analysis, &a.ElapsedMS); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnalysisRepo) Get(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	const q = `
select id, created_at, source, coalesce(chat_id,0), image_hash, image_mime,
       provider, vision_model, text_model, description, analysis, elapsed_ms
from food_analyses where id = $1`
	var a Analysis
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.CreatedAt, &a.Source, &a.ChatID, &a.ImageHash, &a.ImageMIME,
		&a.Provider, &a.VisionModel, &a.TextModel, &a.Description, &a.Analysis, &a.ElapsedMS)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PurgeOlderThan removes rows older than olderThan.
func (r *AnalysisRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from food_analyses where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

// ImageHash is the hex sha256 of the raw image bytes.
func ImageHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
