// Package storage holds the named, versioned caches used by the offline asset cache.
package storage
