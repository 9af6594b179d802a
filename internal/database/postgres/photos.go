package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-timeline/internal/database"
)

// PhotoRepository provides PostgreSQL-backed photo storage.
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new photo repository.
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

const photoColumns = `photo_id, group_id, uploader_id, content_hash, original_path,
	thumb_path, mime, bytes, width, height, shot_at, gps, camera_make,
	camera_model, meeting_id, processed, processing_error, uploaded_at`

// InsertPhotoIfAbsent inserts the photo unless the group already holds the
// same content hash. Returns the stored row and whether an insert happened;
// on a duplicate the existing row is returned unchanged.
func (r *PhotoRepository) InsertPhotoIfAbsent(ctx context.Context, photo *database.Photo) (*database.Photo, bool, error) {
	query := `
		INSERT INTO photos (photo_id, group_id, uploader_id, content_hash,
			original_path, mime, bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (group_id, content_hash) DO NOTHING
		RETURNING ` + photoColumns

	row := r.pool.QueryRow(ctx, query,
		photo.ID, photo.GroupID, photo.UploaderID, photo.ContentHash,
		photo.OriginalPath, photo.Mime, photo.Bytes,
	)
	inserted, err := scanPhoto(row)
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert photo: %w", err)
	}

	existing, err := r.getByHash(ctx, photo.GroupID, photo.ContentHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetPhoto loads a photo by id. Returns ErrNotFound if it does not exist.
func (r *PhotoRepository) GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE photo_id = $1", id)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	return photo, nil
}

func (r *PhotoRepository) getByHash(ctx context.Context, groupID, hash string) (*database.Photo, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+photoColumns+" FROM photos WHERE group_id = $1 AND content_hash = $2",
		groupID, hash)
	photo, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query photo by hash: %w", err)
	}
	return photo, nil
}

// UpdatePhotoMetadata stores extraction results, marks the photo processed
// and clears any previous processing error, all in one statement.
func (r *PhotoRepository) UpdatePhotoMetadata(ctx context.Context, id uuid.UUID, meta *database.PhotoMetadata, thumbPath *string) error {
	query := `
		UPDATE photos
		SET shot_at = $2, gps = $3, width = $4, height = $5,
			camera_make = $6, camera_model = $7, thumb_path = $8,
			processed = TRUE, processing_error = NULL
		WHERE photo_id = $1`

	res, err := r.pool.Exec(ctx, query, id,
		meta.ShotAt, Point{GPS: meta.GPS}, meta.Width, meta.Height,
		meta.CameraMake, meta.CameraModel, thumbPath)
	if err != nil {
		return fmt.Errorf("update photo metadata: %w", err)
	}
	return requireOneRow(res, id)
}

// MarkProcessingFailed records a permanent processing error. The photo stays
// visible with null metadata and routes to the default meeting.
func (r *PhotoRepository) MarkProcessingFailed(ctx context.Context, id uuid.UUID, message string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE photos
		SET processed = TRUE, processing_error = $2
		WHERE photo_id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("mark processing failed: %w", err)
	}
	return requireOneRow(res, id)
}

// ListGroupPhotosOrdered returns all photos of a group sorted by
// (shot_at asc nulls last, photo_id asc), the order the cluster engine
// expects.
func (r *PhotoRepository) ListGroupPhotosOrdered(ctx context.Context, groupID string) ([]database.Photo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+photoColumns+`
		FROM photos
		WHERE group_id = $1
		ORDER BY shot_at ASC NULLS LAST, photo_id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []database.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

func requireOneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(s scanner) (*database.Photo, error) {
	var p database.Photo
	var gps Point
	err := s.Scan(
		&p.ID, &p.GroupID, &p.UploaderID, &p.ContentHash, &p.OriginalPath,
		&p.ThumbPath, &p.Mime, &p.Bytes, &p.Width, &p.Height, &p.ShotAt,
		&gps, &p.CameraMake, &p.CameraModel, &p.MeetingID, &p.Processed,
		&p.ProcessingError, &p.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	p.GPS = gps.GPS
	return &p, nil
}
