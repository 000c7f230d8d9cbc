// Package filter derives the visible reference list from the library
// aggregate and the active predicate. Functions are pure; Cache memoizes
// results per snapshot version.
package filter
