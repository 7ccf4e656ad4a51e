package catalog

import (
	"strings"
	"time"
)

// State represents the lifecycle of a catalogued video.
type State string

const (
	StateNew        State = "new"
	StateQueued     State = "queued"
	StateDownloaded State = "downloaded"
	StateSkipped    State = "skipped"
	StateSleeping   State = "sleeping"
	StateFailed     State = "failed"
)

var allStates = []State{
	StateNew,
	StateQueued,
	StateDownloaded,
	StateSkipped,
	StateSleeping,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// ChannelKind distinguishes the remote list types a channel row can track.
type ChannelKind string

const (
	KindUser     ChannelKind = "user"
	KindChannel  ChannelKind = "channel"
	KindPlaylist ChannelKind = "playlist"
)

// ParseChannelKind converts a string into a known ChannelKind.
func ParseChannelKind(value string) (ChannelKind, bool) {
	switch ChannelKind(strings.ToLower(strings.TrimSpace(value))) {
	case KindUser:
		return KindUser, true
	case KindChannel:
		return KindChannel, true
	case KindPlaylist:
		return KindPlaylist, true
	default:
		return "", false
	}
}

// Channel is a tracked remote source of videos.
type Channel struct {
	ID           int64
	Name         string // provider-assigned identifier (user name, channel id, playlist id)
	Kind         ChannelKind
	Title        string // display title reported by the provider
	Alias        string // user-chosen directory name, required when Title is empty for channel ids
	RSSURL       string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
}

// DirName returns the on-disk directory for the channel's videos.
// The alias always wins; otherwise the provider identifier is used.
func (c Channel) DirName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// DisplayName returns the name shown in listings.
func (c Channel) DisplayName() string {
	if c.Alias != "" {
		return c.Alias
	}
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

// AudioTags carries optional metadata applied during audio conversion.
type AudioTags struct {
	Artist string
	Album  string
	Year   string
	Genre  string
}

// Empty reports whether no tag field is set.
func (t AudioTags) Empty() bool {
	return t.Artist == "" && t.Album == "" && t.Year == "" && t.Genre == ""
}

// Video is one catalogued remote video.
type Video struct {
	ID            string // provider video id, immutable once created
	ChannelID     int64  // 0 when catalogued standalone
	Title         string // title as reported remotely
	Name          string // resolved filesystem name (without id suffix or extension)
	OverrideName  string // user-set preferred name, wins over Name
	State         State
	SleepUntil    *time.Time // non-nil iff State == StateSleeping
	DownloadPath  string     // non-empty only once downloaded
	FailureReason string     // non-empty only when State == StateFailed
	Position      int        // position in the owning list, -1 when delisted remotely
	Duration      int        // seconds
	Uploader      string
	PublishedAt   *time.Time
	Tags          AudioTags
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Downloadable reports whether a download pass should consider the video.
// Sleeping videos are included only once their wake time has passed.
func (v Video) Downloadable(now time.Time) bool {
	switch v.State {
	case StateNew, StateQueued:
		return true
	case StateSleeping:
		return v.SleepUntil != nil && !now.Before(*v.SleepUntil)
	default:
		return false
	}
}
