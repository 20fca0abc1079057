package assetcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrphanGraceWindow is the minimum age an unlinked asset must have before
// GetOrphanedAssets will report it, preventing a race against a save that
// has not yet written its doc_asset link row.
const OrphanGraceWindow = 5 * time.Minute

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every
// Store method run unmodified against either a pooled connection or a
// caller-supplied transaction — the same "depend on the narrowest
// interface the driver already satisfies" shape the teacher uses for its
// repository layer.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IndexStore is the relational persistence layer for asset rows and
// doc_asset link rows (§4.3). Every operation has a …Tx variant accepting
// an external transaction; the non-Tx variant opens and commits its own.
type IndexStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewIndexStore wraps an already-connected pool. now defaults to
// time.Now; tests substitute an injectable clock to exercise the orphan
// grace window deterministically (spec §9).
func NewIndexStore(pool *pgxpool.Pool) *IndexStore {
	return &IndexStore{pool: pool, now: time.Now}
}

// WithClock returns a copy of the store using clock in place of time.Now,
// for tests that need to advance time past the orphan grace window.
func (s *IndexStore) WithClock(clock func() time.Time) *IndexStore {
	return &IndexStore{pool: s.pool, now: clock}
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back otherwise, mirroring the teacher's db.DB.WithTx.
func (s *IndexStore) WithTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", ErrDatabaseError, err)
	}
	return nil
}

// Upsert inserts asset, or on conflict over hash updates ext, bytes and
// mime while preserving the original created_at. Uses the single-statement
// INSERT ... ON CONFLICT form per the Open Question decision in DESIGN.md;
// existed is derived from the xmax trick and is purely informational.
func (s *IndexStore) Upsert(ctx context.Context, asset Asset) (existed bool, err error) {
	return s.upsert(ctx, s.pool, asset)
}

func (s *IndexStore) UpsertTx(ctx context.Context, q querier, asset Asset) (existed bool, err error) {
	return s.upsert(ctx, q, asset)
}

func (s *IndexStore) upsert(ctx context.Context, q querier, asset Asset) (bool, error) {
	if err := asset.Validate(); err != nil {
		return false, err
	}

	const query = `
		INSERT INTO asset (hash, ext, bytes, mime, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO UPDATE
			SET ext = EXCLUDED.ext, bytes = EXCLUDED.bytes, mime = EXCLUDED.mime
		RETURNING (xmax <> 0) AS existed`

	var existed bool
	row := q.QueryRow(ctx, query, asset.Hash, asset.Ext, asset.Bytes, asset.Mime, asset.CreatedAt)
	if err := row.Scan(&existed); err != nil {
		return false, fmt.Errorf("%w: upsert asset: %v", ErrDatabaseError, err)
	}
	return existed, nil
}

// GetByHash returns the asset row for hash, or ErrNotFound.
func (s *IndexStore) GetByHash(ctx context.Context, hash string) (Asset, error) {
	return s.getByHash(ctx, s.pool, hash)
}

func (s *IndexStore) GetByHashTx(ctx context.Context, q querier, hash string) (Asset, error) {
	return s.getByHash(ctx, q, hash)
}

func (s *IndexStore) getByHash(ctx context.Context, q querier, hash string) (Asset, error) {
	if err := ValidateHash(hash); err != nil {
		return Asset{}, err
	}

	const query = `SELECT hash, ext, bytes, mime, created_at FROM asset WHERE hash = $1`
	var a Asset
	row := q.QueryRow(ctx, query, hash)
	if err := row.Scan(&a.Hash, &a.Ext, &a.Bytes, &a.Mime, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, fmt.Errorf("%w: get asset: %v", ErrDatabaseError, err)
	}
	return a, nil
}

// Delete removes the asset row for hash, failing ErrNotFound if absent.
func (s *IndexStore) Delete(ctx context.Context, hash string) error {
	return s.delete(ctx, s.pool, hash)
}

func (s *IndexStore) DeleteTx(ctx context.Context, q querier, hash string) error {
	return s.delete(ctx, q, hash)
}

func (s *IndexStore) delete(ctx context.Context, q querier, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `DELETE FROM asset WHERE hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("%w: delete asset: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkToDocument inserts a doc_asset row, silently ignoring duplicates.
func (s *IndexStore) LinkToDocument(ctx context.Context, hash, docPath string) error {
	return s.linkToDocument(ctx, s.pool, hash, docPath)
}

func (s *IndexStore) LinkToDocumentTx(ctx context.Context, q querier, hash, docPath string) error {
	return s.linkToDocument(ctx, q, hash, docPath)
}

func (s *IndexStore) linkToDocument(ctx context.Context, q querier, hash, docPath string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	if docPath == "" {
		return ErrMissingField
	}

	const query = `
		INSERT INTO doc_asset (path, hash) VALUES ($1, $2)
		ON CONFLICT (path, hash) DO NOTHING`
	if _, err := q.Exec(ctx, query, docPath, hash); err != nil {
		return fmt.Errorf("%w: link asset: %v", ErrDatabaseError, err)
	}
	return nil
}

// UnlinkFromDocument removes one doc_asset row, failing ErrNotFound if no
// such link existed.
func (s *IndexStore) UnlinkFromDocument(ctx context.Context, hash, docPath string) error {
	return s.unlinkFromDocument(ctx, s.pool, hash, docPath)
}

func (s *IndexStore) UnlinkFromDocumentTx(ctx context.Context, q querier, hash, docPath string) error {
	return s.unlinkFromDocument(ctx, q, hash, docPath)
}

func (s *IndexStore) unlinkFromDocument(ctx context.Context, q querier, hash, docPath string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	if docPath == "" {
		return ErrMissingField
	}

	tag, err := q.Exec(ctx, `DELETE FROM doc_asset WHERE path = $1 AND hash = $2`, docPath, hash)
	if err != nil {
		return fmt.Errorf("%w: unlink asset: %v", ErrDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlinkAllFromDocument removes every link for docPath. A zero count is
// not an error.
func (s *IndexStore) UnlinkAllFromDocument(ctx context.Context, docPath string) error {
	return s.unlinkAllFromDocument(ctx, s.pool, docPath)
}

func (s *IndexStore) UnlinkAllFromDocumentTx(ctx context.Context, q querier, docPath string) error {
	return s.unlinkAllFromDocument(ctx, q, docPath)
}

func (s *IndexStore) unlinkAllFromDocument(ctx context.Context, q querier, docPath string) error {
	if docPath == "" {
		return ErrMissingField
	}
	if _, err := q.Exec(ctx, `DELETE FROM doc_asset WHERE path = $1`, docPath); err != nil {
		return fmt.Errorf("%w: unlink all assets: %v", ErrDatabaseError, err)
	}
	return nil
}

// GetDocumentAssets returns the assets linked to docPath, newest first.
func (s *IndexStore) GetDocumentAssets(ctx context.Context, docPath string) ([]Asset, error) {
	return s.getDocumentAssets(ctx, s.pool, docPath)
}

func (s *IndexStore) GetDocumentAssetsTx(ctx context.Context, q querier, docPath string) ([]Asset, error) {
	return s.getDocumentAssets(ctx, q, docPath)
}

func (s *IndexStore) getDocumentAssets(ctx context.Context, q querier, docPath string) ([]Asset, error) {
	if docPath == "" {
		return nil, ErrMissingField
	}

	const query = `
		SELECT a.hash, a.ext, a.bytes, a.mime, a.created_at
		FROM asset a
		JOIN doc_asset d ON d.hash = a.hash
		WHERE d.path = $1
		ORDER BY a.created_at DESC`
	rows, err := q.Query(ctx, query, docPath)
	if err != nil {
		return nil, fmt.Errorf("%w: get document assets: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Hash, &a.Ext, &a.Bytes, &a.Mime, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document asset: %v", ErrDatabaseError, err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate document assets: %v", ErrDatabaseError, err)
	}
	return assets, nil
}

// GetOrphanedAssets returns assets with no doc_asset row whose created_at
// is older than OrphanGraceWindow.
func (s *IndexStore) GetOrphanedAssets(ctx context.Context) ([]Asset, error) {
	return s.getOrphanedAssets(ctx, s.pool)
}

func (s *IndexStore) GetOrphanedAssetsTx(ctx context.Context, q querier) ([]Asset, error) {
	return s.getOrphanedAssets(ctx, q)
}

func (s *IndexStore) getOrphanedAssets(ctx context.Context, q querier) ([]Asset, error) {
	const query = `
		SELECT a.hash, a.ext, a.bytes, a.mime, a.created_at
		FROM asset a
		LEFT JOIN doc_asset d ON d.hash = a.hash
		WHERE d.hash IS NULL AND a.created_at < $1`
	cutoff := s.now().Add(-OrphanGraceWindow)

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: get orphaned assets: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Hash, &a.Ext, &a.Bytes, &a.Mime, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan orphaned asset: %v", ErrDatabaseError, err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate orphaned assets: %v", ErrDatabaseError, err)
	}
	return assets, nil
}
