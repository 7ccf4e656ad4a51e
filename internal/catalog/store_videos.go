package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const videoColumns = "id, channel_id, title, name, override_name, state, sleep_until, download_path, failure_reason, position, duration, uploader, published_at, artist, album, year, genre, created_at, updated_at"

// AddVideo inserts a new video record in state new. channelID may be zero for
// standalone videos.
func (s *Store) AddVideo(ctx context.Context, id string, channelID int64, title, name string, position int) (*Video, error) {
	if id == "" {
		return nil, errors.New("video id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var chID any
	if channelID > 0 {
		chID = channelID
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos (id, channel_id, title, name, state, position, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		chID,
		nullableString(title),
		nullableString(name),
		StateNew,
		position,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}
	return s.VideoByID(ctx, id)
}

// VideoByID fetches a video by provider identifier.
func (s *Store) VideoByID(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// VideosForChannel returns a channel's videos in remote list order.
func (s *Store) VideosForChannel(ctx context.Context, channelID int64) ([]*Video, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = ? ORDER BY position, id`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query channel videos: %w", err)
	}
	return collectVideos(rows)
}

// VideosByState returns videos matching a state ordered by id.
func (s *Store) VideosByState(ctx context.Context, state State) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE state = ? ORDER BY id`, state)
	if err != nil {
		return nil, fmt.Errorf("query by state: %w", err)
	}
	return collectVideos(rows)
}

// Videos returns all videos ordered by id.
func (s *Store) Videos(ctx context.Context) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return collectVideos(rows)
}

// EligibleForDownload returns videos a download pass should attempt: every
// state except skipped, downloaded, and failed. Sleeping entries whose wake
// time has not passed are excluded; expired sleepers are included so the
// orchestrator can wake them.
func (s *Store) EligibleForDownload(ctx context.Context, channelID int64, now time.Time) ([]*Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
        WHERE state IN (?, ?) OR (state = ? AND sleep_until <= ?)`
	args := []any{StateNew, StateQueued, StateSleeping, now.UTC().Format(time.RFC3339Nano)}
	if channelID > 0 {
		query = `SELECT ` + videoColumns + ` FROM videos
            WHERE channel_id = ? AND (state IN (?, ?) OR (state = ? AND sleep_until <= ?))`
		args = append([]any{channelID}, args...)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query eligible videos: %w", err)
	}
	return collectVideos(rows)
}

// UpdateVideoTitle stores a changed remote title, leaving the resolved name
// untouched. Renames only happen through the explicit update-names operation.
func (s *Store) UpdateVideoTitle(ctx context.Context, id, title string) error {
	return s.touchVideo(ctx, id, `title = ?`, title)
}

// UpdateVideoName stores a recomputed resolved filesystem name.
func (s *Store) UpdateVideoName(ctx context.Context, id, name string) error {
	return s.touchVideo(ctx, id, `name = ?`, name)
}

// SetVideoOverride stores or clears the user-preferred name.
func (s *Store) SetVideoOverride(ctx context.Context, id, override string) error {
	return s.touchVideo(ctx, id, `override_name = ?`, nullableString(override))
}

// SetVideoDownloadPath records where a downloaded file now lives, used when
// a rename moves the file after the download transition.
func (s *Store) SetVideoDownloadPath(ctx context.Context, id, path string) error {
	return s.touchVideo(ctx, id, `download_path = ?`, nullableString(path))
}

// SetVideoPosition updates the remote list position. Delisted videos keep
// their record with position -1 so the id-to-channel mapping survives.
func (s *Store) SetVideoPosition(ctx context.Context, id string, position int) error {
	return s.touchVideo(ctx, id, `position = ?`, position)
}

// SetVideoDetails stores metadata learned during sync or download.
func (s *Store) SetVideoDetails(ctx context.Context, id string, duration int, uploader string, published *time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET duration = ?, uploader = ?, published_at = ?, updated_at = ? WHERE id = ?`,
		duration,
		nullableString(uploader),
		nullableTime(published),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("set video details: %w", err)
	}
	return requireAffected(res)
}

// SetAudioTags stores the tag metadata applied during audio conversion.
func (s *Store) SetAudioTags(ctx context.Context, id string, tags AudioTags) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET artist = ?, album = ?, year = ?, genre = ?, updated_at = ? WHERE id = ?`,
		nullableString(tags.Artist),
		nullableString(tags.Album),
		nullableString(tags.Year),
		nullableString(tags.Genre),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("set audio tags: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) touchVideo(ctx context.Context, id, assignment string, value any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET `+assignment+`, updated_at = ? WHERE id = ?`,
		value,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func collectVideos(rows *sql.Rows) ([]*Video, error) {
	defer rows.Close()
	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id           string
		channelID    sql.NullInt64
		title        sql.NullString
		name         sql.NullString
		overrideName sql.NullString
		stateStr     string
		sleepRaw     sql.NullString
		downloadPath sql.NullString
		failureRaw   sql.NullString
		position     int
		duration     int
		uploader     sql.NullString
		publishedRaw sql.NullString
		artist       sql.NullString
		album        sql.NullString
		year         sql.NullString
		genre        sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&channelID,
		&title,
		&name,
		&overrideName,
		&stateStr,
		&sleepRaw,
		&downloadPath,
		&failureRaw,
		&position,
		&duration,
		&uploader,
		&publishedRaw,
		&artist,
		&album,
		&year,
		&genre,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:            id,
		ChannelID:     channelID.Int64,
		Title:         title.String,
		Name:          name.String,
		OverrideName:  overrideName.String,
		State:         State(stateStr),
		DownloadPath:  downloadPath.String,
		FailureReason: failureRaw.String,
		Position:      position,
		Duration:      duration,
		Uploader:      uploader.String,
		Tags: AudioTags{
			Artist: artist.String,
			Album:  album.String,
			Year:   year.String,
			Genre:  genre.String,
		},
	}
	if sleepRaw.Valid {
		if wake, err := parseTimeString(sleepRaw.String); err == nil {
			video.SleepUntil = &wake
		}
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			video.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}
