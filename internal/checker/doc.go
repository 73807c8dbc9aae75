// Package checker executes single endpoint checks.
//
// A check optionally fetches the endpoint's URL, validates the status code
// and content predicates, runs a [CustomCheck], detects stale content and
// records exactly one entry through a [Recorder]. When an error or
// high-latency streak reaches its threshold, an alert is handed to a
// [Notifier].
package checker
