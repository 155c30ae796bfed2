// Package skipcache remembers items an external API answered with a durable
// negative, such as a video whose captions are disabled, so later runs do not
// ask again.
//
// Only negative outcomes are stored. Successful results live in their own
// output artifacts, and transient or item-local failures are never cached so
// they are retried on the next run.
package skipcache
