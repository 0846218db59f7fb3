// Package proxy provides SOCKS5 routing for generated traffic.
//
// The noise a run generates is only useful if it cannot be trivially
// separated from the operator's genuine browsing. Routing it through a
// SOCKS5 proxy (a VPN endpoint, an SSH tunnel, or Tor) lets the operator
// choose which network position the noise appears to come from. Two modes
// are supported:
//
//   - Client wraps an external SOCKS5 proxy the operator already runs.
//   - EmbeddedTor launches a Tor daemon in-process via tornago, so the
//     noise originates from a Tor exit with zero setup.
package proxy
