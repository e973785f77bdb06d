// Package notifications delivers session milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event toggles let operators silence routine milestones while
// keeping error alerts on.
package notifications
