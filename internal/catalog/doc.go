// Package catalog persists channels and videos in a per-directory SQLite
// database and owns the video lifecycle state machine.
package catalog
