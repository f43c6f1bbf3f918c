// Package transform implements the restricted body-rewrite language
// applied to request and response documents before relay. A transform
// config is an ordered list of SET / REMOVE / RENAME / DEFAULT / MAP
// operations over dot-separated paths; the whole list is validated
// against a closed schema before the first operation runs, and the input
// document is never mutated (every Apply works on a deep copy).
//
// Path segments named __proto__, constructor, or prototype are rejected
// outright so configs written for any host environment stay inert.
package transform
