// Package email provides the email delivery path: one-shot delivery attempts,
// the batching coalescer and the periodic retry sweeper.
package email

import (
	"time"

	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/prefs"
)

// Default batching windows. Event types not listed here send immediately
// unless the user opted into windowed delivery.
var defaultWindows = map[domain.EventType]time.Duration{
	domain.EventDMReceived:             60 * time.Second,
	domain.EventCommunityMention:       300 * time.Second,
	domain.EventProjectTimelineUpdated: 600 * time.Second,
	domain.EventCommunityReplyReceived: 300 * time.Second,
	domain.EventCommunityPostLiked:     600 * time.Second,
	domain.EventProjectCommented:       600 * time.Second,
}

// Decision-bearing event types always send immediately, regardless of
// windows and user overrides.
var immediateAllowList = map[domain.EventType]bool{
	domain.EventProjectApproved:    true,
	domain.EventProjectRejected:    true,
	domain.EventTokenGranted:       true,
	domain.EventTokenGrantRejected: true,
	domain.EventResponseAccepted:   true,
	domain.EventResponseDeclined:   true,
	domain.EventMemberApproved:     true,
}

// fallbackWindow applies when a user opts into windowed delivery for an
// event type without a configured default window.
const fallbackWindow = 300 * time.Second

// Policy decides between immediate and windowed email delivery.
// Window overrides (from configuration) take precedence over the defaults.
type Policy struct {
	windows map[domain.EventType]time.Duration
}

// NewPolicy creates a policy with the default windows, applying any
// per-event-type overrides.
func NewPolicy(overrides map[domain.EventType]time.Duration) *Policy {
	windows := make(map[domain.EventType]time.Duration, len(defaultWindows))
	for t, w := range defaultWindows {
		windows[t] = w
	}
	for t, w := range overrides {
		windows[t] = w
	}
	return &Policy{windows: windows}
}

// AlwaysImmediate reports whether the event type is on the immediate-send
// allow-list.
func (p *Policy) AlwaysImmediate(t domain.EventType) bool {
	return immediateAllowList[t]
}

// Window returns the batching window for an event type and whether one is
// configured.
func (p *Policy) Window(t domain.EventType) (time.Duration, bool) {
	w, ok := p.windows[t]
	return w, ok
}

// Plan resolves the delivery mode for one recipient: a zero window means
// send immediately, a positive window means coalesce for that long.
func (p *Policy) Plan(t domain.EventType, pref *prefs.Preference) time.Duration {
	if p.AlwaysImmediate(t) {
		return 0
	}

	window, configured := p.Window(t)

	if pref != nil {
		switch pref.ModeFor(t) {
		case prefs.BatchModeImmediate:
			return 0
		case prefs.BatchModeWindowed:
			if !configured {
				return fallbackWindow
			}
			return window
		}
	}

	if configured {
		return window
	}
	return 0
}
