// Package egress validates upstream URLs before the gateway dials them,
// preventing the relay from being used to reach internal or otherwise
// forbidden networks. Validation is purely lexical: the URL text is
// inspected, IP literals are decoded in all their spellings, and CIDR
// membership is checked, but no DNS lookup or network call is ever made,
// so the guard cannot itself be used as a probing oracle.
//
// The guard must run against the literal URL before the first dial and
// again for every redirect target the upstream returns.
package egress
