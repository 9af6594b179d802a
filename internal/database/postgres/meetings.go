package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kozaktomas/photo-timeline/internal/cluster"
	"github.com/kozaktomas/photo-timeline/internal/database"
)

// MeetingRepository provides PostgreSQL-backed meeting storage and the
// cluster-driven reconciliation.
type MeetingRepository struct {
	pool *Pool
}

// NewMeetingRepository creates a new meeting repository.
func NewMeetingRepository(pool *Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

const meetingColumns = `meeting_id, group_id, title, start_time, end_time,
	meeting_date, photo_count, track, bbox, created_at, updated_at`

// ListGroupMeetings returns all meetings of a group ordered by start time,
// with the default meeting last.
func (r *MeetingRepository) ListGroupMeetings(ctx context.Context, groupID string) ([]database.Meeting, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE group_id = $1
		ORDER BY start_time ASC NULLS LAST, meeting_id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []database.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

// GetMeeting loads a meeting by id. Returns ErrNotFound if it does not exist.
func (r *MeetingRepository) GetMeeting(ctx context.Context, id uuid.UUID) (*database.Meeting, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+meetingColumns+" FROM meetings WHERE meeting_id = $1", id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	return m, nil
}

// EnsureDefaultMeeting creates the group's catch-all meeting if missing and
// returns its id. Idempotent; the partial unique index keeps it single.
func (r *MeetingRepository) EnsureDefaultMeeting(ctx context.Context, groupID string) (uuid.UUID, error) {
	id, err := ensureDefaultMeeting(ctx, r.pool.DB(), groupID)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func ensureDefaultMeeting(ctx context.Context, db execer, groupID string) (uuid.UUID, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO meetings (meeting_id, group_id, title)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id) WHERE title = 'Default Meeting' DO NOTHING`,
		uuid.New(), groupID, database.DefaultMeetingTitle)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert default meeting: %w", err)
	}

	var id uuid.UUID
	err = db.QueryRowContext(ctx, `
		SELECT meeting_id FROM meetings WHERE group_id = $1 AND title = $2`,
		groupID, database.DefaultMeetingTitle).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load default meeting: %w", err)
	}
	return id, nil
}

// ReconcileMeetings rewrites the group's meetings to match the desired
// clusters. Untimed photos go to the default meeting, which exists exactly
// when that set is non-empty. The whole reconciliation runs inside one
// transaction holding the group's advisory lock; existing meeting ids are
// kept for clusters whose members overlap an existing meeting by at least
// half so URLs stay stable.
func (r *MeetingRepository) ReconcileMeetings(ctx context.Context, groupID string, clusters []cluster.Cluster, untimed []uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := acquireGroupLock(ctx, tx, groupID); err != nil {
		return err
	}

	existing, err := loadMeetingMembers(ctx, tx, groupID)
	if err != nil {
		return err
	}

	matches := matchClusters(clusters, existing)
	used := make(map[uuid.UUID]bool, len(matches))

	for i, c := range clusters {
		meetingID, matched := matches[i]
		if matched {
			used[meetingID] = true
			if err := updateMeeting(ctx, tx, meetingID, &c); err != nil {
				return err
			}
		} else {
			meetingID = uuid.New()
			if err := insertMeeting(ctx, tx, meetingID, groupID, &c); err != nil {
				return err
			}
			used[meetingID] = true
		}
		if err := assignPhotos(ctx, tx, meetingID, photoIDs(&c)); err != nil {
			return err
		}
	}

	if err := reconcileDefaultMeeting(ctx, tx, groupID, untimed, used); err != nil {
		return err
	}

	// Remove non-default meetings that no cluster claimed. Members were
	// reassigned above, so these are empty by now.
	if err := deleteUnmatchedMeetings(ctx, tx, groupID, used); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", err)
	}
	return nil
}

// acquireGroupLock takes the per-group advisory lock for the duration of the
// transaction. Concurrent reconciliations of the same group queue up here.
func acquireGroupLock(ctx context.Context, tx *sql.Tx, groupID string) error {
	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", groupID); err != nil {
		return fmt.Errorf("acquire group lock: %w", err)
	}
	return nil
}

// meetingMembers is an existing non-default meeting and its member photos.
type meetingMembers struct {
	id      uuid.UUID
	members map[uuid.UUID]bool
}

func loadMeetingMembers(ctx context.Context, tx *sql.Tx, groupID string) ([]meetingMembers, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT m.meeting_id, p.photo_id
		FROM meetings m
		LEFT JOIN photos p ON p.meeting_id = m.meeting_id
		WHERE m.group_id = $1 AND m.title <> $2
		ORDER BY m.start_time ASC, m.end_time ASC, m.meeting_id ASC`,
		groupID, database.DefaultMeetingTitle)
	if err != nil {
		return nil, fmt.Errorf("load meeting members: %w", err)
	}
	defer rows.Close()

	var result []meetingMembers
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var meetingID uuid.UUID
		var photoID *uuid.UUID
		if err := rows.Scan(&meetingID, &photoID); err != nil {
			return nil, fmt.Errorf("scan meeting member: %w", err)
		}
		i, ok := index[meetingID]
		if !ok {
			i = len(result)
			index[meetingID] = i
			result = append(result, meetingMembers{id: meetingID, members: map[uuid.UUID]bool{}})
		}
		if photoID != nil {
			result[i].members[*photoID] = true
		}
	}
	return result, rows.Err()
}

// matchClusters pairs desired clusters with existing meetings by member
// overlap. A cluster reuses a meeting when at least half of the cluster's
// photos already belong to it; each meeting is claimed at most once, first
// come first served in timeline order.
func matchClusters(clusters []cluster.Cluster, existing []meetingMembers) map[int]uuid.UUID {
	matches := make(map[int]uuid.UUID)
	claimed := make(map[uuid.UUID]bool)

	for i := range clusters {
		c := &clusters[i]
		var bestID uuid.UUID
		bestOverlap := 0
		for _, m := range existing {
			if claimed[m.id] {
				continue
			}
			overlap := 0
			for _, p := range c.Photos {
				if m.members[p.ID] {
					overlap++
				}
			}
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestID = m.id
			}
		}
		if bestOverlap*2 >= len(c.Photos) && bestOverlap > 0 {
			matches[i] = bestID
			claimed[bestID] = true
		}
	}
	return matches
}

func insertMeeting(ctx context.Context, tx *sql.Tx, id uuid.UUID, groupID string, c *cluster.Cluster) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meetings (meeting_id, group_id, title, start_time, end_time,
			meeting_date, photo_count, track, bbox)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, groupID, MeetingTitle(c.Start), c.Start, c.End,
		c.Start.In(time.Local).Format("2006-01-02"), len(c.Photos),
		Path{Track: c.Track}, Box{BBox: c.BBox})
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func updateMeeting(ctx context.Context, tx *sql.Tx, id uuid.UUID, c *cluster.Cluster) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE meetings
		SET title = $2, start_time = $3, end_time = $4, meeting_date = $5,
			photo_count = $6, track = $7, bbox = $8, updated_at = NOW()
		WHERE meeting_id = $1`,
		id, MeetingTitle(c.Start), c.Start, c.End,
		c.Start.In(time.Local).Format("2006-01-02"), len(c.Photos),
		Path{Track: c.Track}, Box{BBox: c.BBox})
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	return nil
}

func assignPhotos(ctx context.Context, tx *sql.Tx, meetingID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE photos SET meeting_id = $1 WHERE photo_id = ANY($2::uuid[])`,
		meetingID, pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("assign photos: %w", err)
	}
	return nil
}

// reconcileDefaultMeeting keeps the catch-all meeting in step with the
// untimed photos: it exists exactly when they do, and owns all of them.
func reconcileDefaultMeeting(ctx context.Context, tx *sql.Tx, groupID string, untimed []uuid.UUID, used map[uuid.UUID]bool) error {
	if len(untimed) == 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM meetings WHERE group_id = $1 AND title = $2`,
			groupID, database.DefaultMeetingTitle)
		if err != nil {
			return fmt.Errorf("delete empty default meeting: %w", err)
		}
		return nil
	}

	id, err := ensureDefaultMeeting(ctx, tx, groupID)
	if err != nil {
		return err
	}
	used[id] = true
	if err := assignPhotos(ctx, tx, id, untimed); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE meetings SET photo_count = $2, updated_at = NOW()
		WHERE meeting_id = $1`, id, len(untimed))
	if err != nil {
		return fmt.Errorf("update default meeting count: %w", err)
	}
	return nil
}

func deleteUnmatchedMeetings(ctx context.Context, tx *sql.Tx, groupID string, used map[uuid.UUID]bool) error {
	keep := make([]string, 0, len(used))
	for id := range used {
		keep = append(keep, id.String())
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM meetings
		WHERE group_id = $1 AND NOT (meeting_id = ANY($2::uuid[]))`,
		groupID, pq.Array(keep))
	if err != nil {
		return fmt.Errorf("delete unmatched meetings: %w", err)
	}
	return nil
}

// MeetingTitle derives the human-readable title from the meeting's start in
// the server's local zone, e.g. "2024-06-10 Afternoon".
func MeetingTitle(start time.Time) string {
	local := start.In(time.Local)
	var part string
	switch h := local.Hour(); {
	case h < 5:
		part = "Night"
	case h < 12:
		part = "Morning"
	case h < 17:
		part = "Afternoon"
	case h < 21:
		part = "Evening"
	default:
		part = "Night"
	}
	return local.Format("2006-01-02") + " " + part
}

func photoIDs(c *cluster.Cluster) []uuid.UUID {
	ids := make([]uuid.UUID, len(c.Photos))
	for i, p := range c.Photos {
		ids[i] = p.ID
	}
	return ids
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func scanMeeting(s scanner) (*database.Meeting, error) {
	var m database.Meeting
	var start, end, date *time.Time
	var track Path
	var bbox Box
	err := s.Scan(
		&m.ID, &m.GroupID, &m.Title, &start, &end, &date,
		&m.PhotoCount, &track, &bbox, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start != nil {
		m.StartTime = *start
	}
	if end != nil {
		m.EndTime = *end
	}
	if date != nil {
		m.MeetingDate = *date
	}
	m.Track = track.Track
	m.BBox = bbox.BBox
	return &m, nil
}
