// Package publish defines the remote-post capability the publish lane drives
// and the failure taxonomy the scheduler reacts to.
//
// A Poster sends one converted file with its options and reports failures as
// typed errors. Classify maps any error to one of four kinds: authentication
// failures stop publishing, rate limits freeze the queue, media the platform
// refuses is discarded, and everything else is treated as transient and
// retried after a longer cooldown.
//
// DryRun is the poster used when no provider is configured. Real providers
// live in subpackages (see publish/mastodon).
package publish
