// Package subscription tracks which subscribers are interested in which topic
// patterns.
//
// A Registry keeps two indexes over the same Subscription records: one keyed
// by pattern, used when a message arrives, and one keyed by subscriber, used
// to unregister everything a subscriber owns in one call. Registration issues a
// Subscribe command through an Executor (normally the connection lifecycle,
// which buffers it while offline). Removing the last subscription on a
// pattern issues the matching Unsubscribe.
//
// Unregistering flips each Subscription's active flag in the same critical
// section that removes it from the pattern index. Dispatch snapshots matching
// subscriptions and re-checks the flag immediately before invoking a handler,
// so no new invocation starts once Unregister has returned. Invocations that
// had already started run to completion.
package subscription
