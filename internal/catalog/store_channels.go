package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const channelColumns = "id, name, kind, title, alias, rss_url, last_synced_at, created_at"

// AddChannel inserts a new tracked channel. A channel whose provider title is
// unknown and whose identifier is opaque (kind = channel) must carry an alias
// so its directory name stays readable.
func (s *Store) AddChannel(ctx context.Context, name string, kind ChannelKind, alias string) (*Channel, error) {
	if name == "" {
		return nil, errors.New("channel name is required")
	}
	if alias != "" {
		if err := s.checkAliasFree(ctx, alias); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO channels (name, kind, alias, created_at) VALUES (?, ?, ?, ?)`,
		name,
		kind,
		nullableString(alias),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.ChannelByID(ctx, id)
}

// ChannelByID fetches a channel by row identifier.
func (s *Store) ChannelByID(ctx context.Context, id int64) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	return scanChannelRow(row)
}

// ChannelByName fetches a channel by kind and provider identifier.
func (s *Store) ChannelByName(ctx context.Context, kind ChannelKind, name string) (*Channel, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+channelColumns+` FROM channels WHERE kind = ? AND name = ?`,
		kind, name,
	)
	return scanChannelRow(row)
}

// ChannelByRef fetches a channel by provider identifier or alias, any kind.
func (s *Store) ChannelByRef(ctx context.Context, ref string) (*Channel, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+channelColumns+` FROM channels WHERE name = ? OR alias = ? ORDER BY id LIMIT 1`,
		ref, ref,
	)
	return scanChannelRow(row)
}

// Channels returns all tracked channels ordered by kind then name.
func (s *Store) Channels(ctx context.Context) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY kind, name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// SetChannelAlias assigns or replaces a channel alias. The alias must be
// unique across every channel's name and alias.
func (s *Store) SetChannelAlias(ctx context.Context, id int64, alias string) error {
	if alias == "" {
		return errors.New("alias is required")
	}
	if err := s.checkAliasFree(ctx, alias); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE channels SET alias = ? WHERE id = ?`, alias, id)
	if err != nil {
		return fmt.Errorf("set alias: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChannelRSS caches the discovered RSS feed URL for a channel.
func (s *Store) SetChannelRSS(ctx context.Context, id int64, url string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE channels SET rss_url = ? WHERE id = ?`, nullableString(url), id)
	if err != nil {
		return fmt.Errorf("set rss url: %w", err)
	}
	return nil
}

// TouchChannelSynced records a successful sync, updating the display title
// when the provider reports one.
func (s *Store) TouchChannelSynced(ctx context.Context, id int64, title string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var err error
	if title != "" {
		_, err = s.db.ExecContext(ctx, `UPDATE channels SET last_synced_at = ?, title = ? WHERE id = ?`, now, title, id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE channels SET last_synced_at = ? WHERE id = ?`, now, id)
	}
	if err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}
	return nil
}

func (s *Store) checkAliasFree(ctx context.Context, alias string) error {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM channels WHERE name = ? OR alias = ?`,
		alias, alias,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check alias: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrAliasTaken, alias)
	}
	return nil
}

func scanChannelRow(row *sql.Row) (*Channel, error) {
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (*Channel, error) {
	var (
		id        int64
		name      string
		kindStr   string
		title     sql.NullString
		alias     sql.NullString
		rssURL    sql.NullString
		syncedRaw sql.NullString
		createdAt sql.NullString
	)
	if err := scanner.Scan(&id, &name, &kindStr, &title, &alias, &rssURL, &syncedRaw, &createdAt); err != nil {
		return nil, err
	}

	ch := &Channel{
		ID:     id,
		Name:   name,
		Kind:   ChannelKind(kindStr),
		Title:  title.String,
		Alias:  alias.String,
		RSSURL: rssURL.String,
	}
	if syncedRaw.Valid {
		if synced, err := parseTimeString(syncedRaw.String); err == nil {
			ch.LastSyncedAt = &synced
		}
	}
	if created, err := parseTimeString(createdAt.String); err == nil {
		ch.CreatedAt = created
	}
	return ch, nil
}
