package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingHooksDisabled stores the persistent hook toggle written by the
// hooks enable/disable commands. A "true" value suppresses dispatch.
const SettingHooksDisabled = "hooks_disabled"

// Setting returns a stored setting, or "" when the key has never been set.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting. An empty value removes the key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if value == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("clear setting %s: %w", key, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
