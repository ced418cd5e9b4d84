// Package sanitizer normalizes user-supplied strings before validation and
// storage. Every function is idempotent.
package sanitizer
