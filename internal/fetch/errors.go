package fetch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DownloadError wraps a downloader invocation failure with the stderr detail
// the binary reported.
type DownloadError struct {
	VideoID string
	Detail  string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("download %s: %v: %s", e.VideoID, e.Err, e.Detail)
	}
	return fmt.Sprintf("download %s: %v", e.VideoID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UnavailableError marks a video the provider has listed but not yet
// released (premieres, scheduled live events). Wake is the earliest time a
// retry could succeed.
type UnavailableError struct {
	VideoID string
	Wake    time.Time
	Reason  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("video %s not yet available: %s", e.VideoID, e.Reason)
}

// PaymentRequiredError marks a video behind a paywall or membership gate.
type PaymentRequiredError struct {
	VideoID string
	Reason  string
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("video %s requires payment: %s", e.VideoID, e.Reason)
}

// IsUnavailable reports whether err marks a not-yet-released video and
// returns the typed error when it does.
func IsUnavailable(err error) (*UnavailableError, bool) {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable, true
	}
	return nil, false
}

// IsPaymentRequired reports whether err marks a paywalled video.
func IsPaymentRequired(err error) bool {
	var payment *PaymentRequiredError
	return errors.As(err, &payment)
}

// availableIn matches relative availability phrases the downloader emits for
// premieres and scheduled live events.
var availableIn = regexp.MustCompile(`(?i)(?:premieres|will begin|available) in (\d+) (second|minute|hour|day)s?`)

var paymentPhrases = []string{
	"requires payment",
	"join this channel",
	"members-only",
	"premium members",
}

// wakeBuffer pads the reported availability so the retry lands after the
// release, not on its exact second.
const wakeBuffer = 5 * time.Minute

// classifyFailure inspects downloader stderr and upgrades recognizable
// failures to typed errors. Unrecognized output yields a plain DownloadError.
func classifyFailure(videoID, stderr string, now time.Time, cause error) error {
	detail := lastErrorLine(stderr)
	lower := strings.ToLower(stderr)

	for _, phrase := range paymentPhrases {
		if strings.Contains(lower, phrase) {
			return &PaymentRequiredError{VideoID: videoID, Reason: detail}
		}
	}

	if m := availableIn.FindStringSubmatch(stderr); m != nil {
		amount, err := strconv.Atoi(m[1])
		if err == nil {
			var unit time.Duration
			switch strings.ToLower(m[2]) {
			case "second":
				unit = time.Second
			case "minute":
				unit = time.Minute
			case "hour":
				unit = time.Hour
			case "day":
				unit = 24 * time.Hour
			}
			if unit > 0 {
				return &UnavailableError{
					VideoID: videoID,
					Wake:    now.Add(time.Duration(amount)*unit + wakeBuffer),
					Reason:  detail,
				}
			}
		}
	}

	return &DownloadError{VideoID: videoID, Detail: detail, Err: cause}
}

// lastErrorLine extracts the most useful line from downloader stderr,
// preferring the last ERROR-prefixed line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR") {
			return line
		}
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}
