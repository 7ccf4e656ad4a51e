package hooks

import "reel/internal/catalog"

// Event names fired by the core components.
const (
	EventAdd       = "add"        // a video was catalogued during sync
	EventDownload  = "download"   // a video finished downloading
	EventSkipVideo = "skip-video" // a video was skipped (manual or payment-required)
	EventSleep     = "sleep"      // a video was put to sleep
	EventError     = "error"      // a download or sync failure
	EventRename    = "rename"     // update-names renamed a video's files
)

// KnownEvents returns every event name the core dispatches.
func KnownEvents() []string {
	return []string{EventAdd, EventDownload, EventSkipVideo, EventSleep, EventError, EventRename}
}

// Event is the tagged context delivered to callbacks. Only the fields
// meaningful for the named event are populated; Extra carries anything a
// future event needs without breaking existing callbacks.
type Event struct {
	Name    string
	Video   *catalog.Video
	Channel string
	Path    string
	Err     error
	Extra   map[string]string
}

// VideoID returns the subject video id, empty when the event has none.
func (e Event) VideoID() string {
	if e.Video == nil {
		return ""
	}
	return e.Video.ID
}
