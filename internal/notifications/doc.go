// Package notifications delivers organizer events to ntfy and Slack.
//
// Each transport is enabled by its own config key (an ntfy topic URL or a
// Slack incoming webhook). With neither set, NewService returns a no-op so
// callers never need to check. Events carry a loose Payload map and are
// formatted here, keeping message wording out of the organizer.
package notifications
