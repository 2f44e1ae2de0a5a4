// Package sanitizer normalizes free-text input before validation and
// storage.
//
// All normalization functions are idempotent - applying them multiple
// times produces the same result. Functions handle invalid input
// gracefully, typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Strings: collapse internal whitespace, trim leading/trailing spaces
//   - Reasons and notes: whitespace normalization plus control-character removal
package sanitizer
