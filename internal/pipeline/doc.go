// Package pipeline orchestrates a proxied request end to end: route
// resolution, role authorization, secret decryption, egress validation,
// body transformation, the breaker-wrapped upstream call and response
// relay, with one audit event per request regardless of outcome.
package pipeline
