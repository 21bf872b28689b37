package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/yourorg/imageforge/internal/domain"
)

// CreateImage inserts a new pending image. The image id is generated by the
// caller before uploads begin (§5), which is what makes concurrent uploads
// of the same variant set idempotent.
func (g *Gateway) CreateImage(ctx context.Context, imageID uuid.UUID, prompt string, style domain.Style) error {
	_, err := g.Pool.Exec(ctx, `
		INSERT INTO image (id, prompt, style, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`, imageID, prompt, style)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

// SetImageStatus advances an image's monotonic status (§3).
func (g *Gateway) SetImageStatus(ctx context.Context, imageID uuid.UUID, status domain.ImageStatus) error {
	_, err := g.Pool.Exec(ctx, `
		UPDATE image SET status = $2, updated_at = NOW() WHERE id = $1`, imageID, status)
	if err != nil {
		return fmt.Errorf("set image status: %w", err)
	}
	return nil
}

// SetGenerationCost records write-only generation cost metadata (§9 open
// question: never surfaced via the Status API).
func (g *Gateway) SetGenerationCost(ctx context.Context, imageID uuid.UUID, cost float64) error {
	_, err := g.Pool.Exec(ctx, `UPDATE image SET generation_cost = $2 WHERE id = $1`, imageID, cost)
	if err != nil {
		return fmt.Errorf("set generation cost: %w", err)
	}
	return nil
}

// SetTaggingCost records write-only tagging cost metadata.
func (g *Gateway) SetTaggingCost(ctx context.Context, imageID uuid.UUID, cost float64) error {
	_, err := g.Pool.Exec(ctx, `UPDATE image SET tagging_cost = $2 WHERE id = $1`, imageID, cost)
	if err != nil {
		return fmt.Errorf("set tagging cost: %w", err)
	}
	return nil
}

// UpsertVariant writes one variant row, idempotent on (image_id, preset) —
// overwrite is required by §6 (object-store layout) and mirrored here so a
// retried upload converges on a single row per preset.
func (g *Gateway) UpsertVariant(ctx context.Context, v domain.Variant) error {
	_, err := g.Pool.Exec(ctx, `
		INSERT INTO image_variant (image_id, preset, path, size, width, height)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (image_id, preset) DO UPDATE SET
			path = EXCLUDED.path, size = EXCLUDED.size,
			width = EXCLUDED.width, height = EXCLUDED.height`,
		v.ImageID, v.Preset, v.Path, v.Size, v.Width, v.Height)
	if err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}

// ReplaceTags deletes and reinserts an image's tags in one transaction,
// deduped per image (§4.2 step 5) and keyed by (image_id, tag).
func (g *Gateway) ReplaceTags(ctx context.Context, imageID uuid.UUID, tags []domain.Tag) error {
	tx, err := g.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM image_tag WHERE image_id = $1`, imageID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if seen[t.Tag] {
			continue
		}
		seen[t.Tag] = true
		if _, err := tx.Exec(ctx, `
			INSERT INTO image_tag (image_id, tag, confidence, source)
			VALUES ($1, $2, $3, $4)`, imageID, t.Tag, t.Confidence, t.Source); err != nil {
			return fmt.Errorf("insert tag %q: %w", t.Tag, err)
		}
	}

	return tx.Commit(ctx)
}

// SortedTagStrings returns the lexicographically sorted tag text, used by
// the embedding step to build a deterministic embedding input (§4.2 step 6).
func SortedTagStrings(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Tag
	}
	sort.Strings(out)
	return out
}

// SetDescription upserts the at-most-one description for an image.
func (g *Gateway) SetDescription(ctx context.Context, d domain.Description) error {
	_, err := g.Pool.Exec(ctx, `
		INSERT INTO image_description (image_id, description, analysis, model)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (image_id) DO UPDATE SET
			description = EXCLUDED.description, analysis = EXCLUDED.analysis, model = EXCLUDED.model`,
		d.ImageID, d.Description, d.Analysis, d.Model)
	if err != nil {
		return fmt.Errorf("set description: %w", err)
	}
	return nil
}

// ReplaceColors deletes and reinserts the extracted dominant colors.
func (g *Gateway) ReplaceColors(ctx context.Context, imageID uuid.UUID, colors []domain.Color) error {
	tx, err := g.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM image_color WHERE image_id = $1`, imageID); err != nil {
		return fmt.Errorf("clear colors: %w", err)
	}
	for _, c := range colors {
		if _, err := tx.Exec(ctx, `
			INSERT INTO image_color (image_id, hex, percentage, is_dominant)
			VALUES ($1, $2, $3, $4)`, imageID, c.Hex, c.Percentage, c.IsDominant); err != nil {
			return fmt.Errorf("insert color %q: %w", c.Hex, err)
		}
	}
	return tx.Commit(ctx)
}

// SetEmbedding upserts the at-most-one embedding vector for an image.
func (g *Gateway) SetEmbedding(ctx context.Context, e domain.Embedding) error {
	_, err := g.Pool.Exec(ctx, `
		INSERT INTO image_embedding (image_id, vector, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (image_id) DO UPDATE SET vector = EXCLUDED.vector, model = EXCLUDED.model`,
		e.ImageID, vectorLiteral(e.Vector), e.Model)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// MarkImageReady is the terminal transition of §4.2 step 7: a ready image
// must already have one variant per preset, one description, one
// embedding, and at least one tag — callers are responsible for sequencing
// the prior steps before calling this.
func (g *Gateway) MarkImageReady(ctx context.Context, imageID uuid.UUID) error {
	return g.SetImageStatus(ctx, imageID, domain.ImageReady)
}

// vectorLiteral renders a float32 slice as a Postgres array literal. A real
// deployment would use pgvector's vector type via its pgx codec; the core
// here stores the literal text form so the schema does not require the
// pgvector extension to be present in every environment.
func vectorLiteral(v []float32) string {
	b := make([]byte, 0, len(v)*8)
	b = append(b, '{')
	for i, f := range v {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf("%g", f)...)
	}
	b = append(b, '}')
	return string(b)
}
