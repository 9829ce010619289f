package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleasset.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: duplicate entry (%s)", operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing", operation, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

const assetColumns = `id, original_key, derived_key, file_name, mime_type, size_bytes, width, height, created_at`

func scanAsset(row pgx.Row) (*simpleasset.Asset, error) {
	var a simpleasset.Asset
	err := row.Scan(&a.ID, &a.OriginalKey, &a.DerivedKey, &a.FileName, &a.MimeType,
		&a.SizeBytes, &a.Width, &a.Height, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssets(rows pgx.Rows) ([]*simpleasset.Asset, error) {
	defer rows.Close()
	out := []*simpleasset.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	query := `INSERT INTO assets (` + assetColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		asset.ID, asset.OriginalKey, asset.DerivedKey, asset.FileName, asset.MimeType,
		asset.SizeBytes, asset.Width, asset.Height, asset.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create asset", err)
	}
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	asset, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleasset.ErrAssetNotFound
		}
		return nil, r.handlePostgresError("get asset", err)
	}
	return asset, nil
}

func (r *Repository) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	if len(ids) == 0 {
		return []*simpleasset.Asset{}, nil
	}
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, r.handlePostgresError("get assets", err)
	}
	assets, err := collectAssets(rows)
	if err != nil {
		return nil, r.handlePostgresError("get assets", err)
	}
	return assets, nil
}

// DeleteAssetsByIDs removes rows and returns them in one statement, so the
// blob keys are read from exactly the rows that were deleted
func (r *Repository) DeleteAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	if len(ids) == 0 {
		return []*simpleasset.Asset{}, nil
	}
	query := `DELETE FROM assets WHERE id = ANY($1) RETURNING ` + assetColumns

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, r.handlePostgresError("delete assets", err)
	}
	assets, err := collectAssets(rows)
	if err != nil {
		return nil, r.handlePostgresError("delete assets", err)
	}
	return assets, nil
}

// Owner operations

const ownerColumns = `id, kind, name, attributes, asset_ids, version, created_at, updated_at`

func scanOwner(row pgx.Row) (*simpleasset.Owner, error) {
	var o simpleasset.Owner
	var kind string
	err := row.Scan(&o.ID, &kind, &o.Name, &o.Attributes, &o.AssetIDs, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Kind = simpleasset.OwnerKind(kind)
	if o.AssetIDs == nil {
		o.AssetIDs = []uuid.UUID{}
	}
	return &o, nil
}

func attributesOrEmpty(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return map[string]interface{}{}
	}
	return attrs
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func (r *Repository) CreateOwner(ctx context.Context, owner *simpleasset.Owner) error {
	query := `INSERT INTO owners (` + ownerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		owner.ID, string(owner.Kind), owner.Name, attributesOrEmpty(owner.Attributes),
		idsOrEmpty(owner.AssetIDs), owner.Version, owner.CreatedAt, owner.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create owner", err)
	}
	return nil
}

func (r *Repository) GetOwner(ctx context.Context, id uuid.UUID) (*simpleasset.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE id = $1`

	owner, err := scanOwner(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simpleasset.ErrOwnerNotFound
		}
		return nil, r.handlePostgresError("get owner", err)
	}
	return owner, nil
}

func (r *Repository) ListOwners(ctx context.Context, kind simpleasset.OwnerKind) ([]*simpleasset.Owner, error) {
	query := `SELECT ` + ownerColumns + ` FROM owners WHERE ($1 = '' OR kind = $1) ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, string(kind))
	if err != nil {
		return nil, r.handlePostgresError("list owners", err)
	}
	defer rows.Close()

	owners := []*simpleasset.Owner{}
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			return nil, r.handlePostgresError("list owners", err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list owners", err)
	}
	return owners, nil
}

// UpdateOwner writes only when the stored version matches, bumping it in the
// same statement
func (r *Repository) UpdateOwner(ctx context.Context, owner *simpleasset.Owner, expectedVersion int64) error {
	query := `
		UPDATE owners SET
			name = $3, attributes = $4, asset_ids = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2
		RETURNING version`

	var version int64
	err := r.db.QueryRow(ctx, query,
		owner.ID, expectedVersion, owner.Name, attributesOrEmpty(owner.Attributes),
		idsOrEmpty(owner.AssetIDs), owner.UpdatedAt).Scan(&version)
	if err == nil {
		owner.Version = version
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return r.handlePostgresError("update owner", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM owners WHERE id = $1)`, owner.ID).Scan(&exists); err != nil {
		return r.handlePostgresError("update owner", err)
	}
	if !exists {
		return simpleasset.ErrOwnerNotFound
	}
	return simpleasset.ErrOwnerConflict
}

func (r *Repository) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete owner", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleasset.ErrOwnerNotFound
	}
	return nil
}

func (r *Repository) DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM owners WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, r.handlePostgresError("delete owners", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) ReferencedAssetIDs(ctx context.Context, assetIDs []uuid.UUID, excludeOwnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(assetIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	query := `
		SELECT DISTINCT a.id
		FROM owners o, unnest(o.asset_ids) AS a(id)
		WHERE o.asset_ids && $1 AND a.id = ANY($1) AND NOT (o.id = ANY($2))`

	rows, err := r.db.Query(ctx, query, assetIDs, idsOrEmpty(excludeOwnerIDs))
	if err != nil {
		return nil, r.handlePostgresError("referenced assets", err)
	}
	defer rows.Close()

	out := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("referenced assets", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("referenced assets", err)
	}
	return out, nil
}

func (r *Repository) DetachAsset(ctx context.Context, assetID uuid.UUID) error {
	query := `
		UPDATE owners SET
			asset_ids = array_remove(asset_ids, $1),
			version = version + 1, updated_at = now()
		WHERE $1 = ANY(asset_ids)`

	if _, err := r.db.Exec(ctx, query, assetID); err != nil {
		return r.handlePostgresError("detach asset", err)
	}
	return nil
}
