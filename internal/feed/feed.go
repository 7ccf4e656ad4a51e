// Package feed enumerates the remote contents of a tracked channel. Two
// enumerators exist: an RSS reader that fetches the provider's Atom feed
// (cheap, but only the most recent uploads) and a full lister that asks the
// downloader binary for the complete flat playlist.
package feed

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"reel/internal/catalog"
)

// Entry is one remote video as reported by an enumerator.
type Entry struct {
	ID        string
	Title     string
	Position  int // 0-based position in the listing
	Duration  int // seconds, 0 when the enumerator does not report it
	Uploader  string
	Published *time.Time
}

// Listing is the result of enumerating a channel. Complete reports whether
// the listing covers every remote video; an RSS feed only carries the most
// recent entries, so its listings are never complete.
type Listing struct {
	Title    string
	Entries  []Entry
	Complete bool
}

// SourceURL returns the canonical remote URL for a channel, the address both
// the full lister and the downloader resolve.
func SourceURL(ch *catalog.Channel) string {
	switch ch.Kind {
	case catalog.KindUser:
		return "https://www.youtube.com/user/" + ch.Name + "/videos"
	case catalog.KindPlaylist:
		return "https://www.youtube.com/playlist?list=" + ch.Name
	default:
		return "https://www.youtube.com/channel/" + ch.Name + "/videos"
	}
}

// FeedURL returns the Atom feed address for a channel.
func FeedURL(ch *catalog.Channel) string {
	switch ch.Kind {
	case catalog.KindUser:
		return "https://www.youtube.com/feeds/videos.xml?user=" + ch.Name
	case catalog.KindPlaylist:
		return "https://www.youtube.com/feeds/videos.xml?playlist_id=" + ch.Name
	default:
		return "https://www.youtube.com/feeds/videos.xml?channel_id=" + ch.Name
	}
}

// VideoURL returns the watch URL for a single video id.
func VideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Target is what a pasted URL points at: a single video or a channel of
// some kind.
type Target struct {
	Kind  catalog.ChannelKind
	Video bool
	ID    string
}

// ParseTarget extracts the target of a provider URL. Watch and youtu.be
// links yield a video target; /user/, /channel/, and /playlist links yield
// a channel target. Vanity /c/ names have no stable feed id and are
// rejected.
func ParseTarget(raw string) (*Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "youtu.be" {
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return nil, fmt.Errorf("short link %q carries no video id", raw)
		}
		return &Target{Video: true, ID: id}, nil
	}
	if host != "youtube.com" {
		return nil, fmt.Errorf("unrecognized host %q", u.Hostname())
	}

	switch {
	case u.Path == "/watch":
		id := u.Query().Get("v")
		if id == "" {
			return nil, fmt.Errorf("watch url %q has no v= query", raw)
		}
		return &Target{Video: true, ID: id}, nil
	case u.Path == "/playlist":
		id := u.Query().Get("list")
		if id == "" {
			return nil, fmt.Errorf("playlist url %q has no list= query", raw)
		}
		return &Target{Kind: catalog.KindPlaylist, ID: id}, nil
	case strings.HasPrefix(u.Path, "/user/"):
		return pathTarget(raw, u.Path, "/user/", catalog.KindUser)
	case strings.HasPrefix(u.Path, "/channel/"):
		return pathTarget(raw, u.Path, "/channel/", catalog.KindChannel)
	case strings.HasPrefix(u.Path, "/c/"):
		return nil, fmt.Errorf("vanity /c/ urls have no channel id; use the /channel/ url instead")
	}
	return nil, fmt.Errorf("unrecognized url %q", raw)
}

func pathTarget(raw, path, prefix string, kind catalog.ChannelKind) (*Target, error) {
	rest := strings.TrimPrefix(path, prefix)
	id := strings.SplitN(strings.Trim(rest, "/"), "/", 2)[0]
	if id == "" {
		return nil, fmt.Errorf("url %q carries no name after %s", raw, prefix)
	}
	return &Target{Kind: kind, ID: id}, nil
}
