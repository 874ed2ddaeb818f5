// Package feed implements the client for the upstream market-data feed.
//
// The feed is session-oriented: one authenticated WebSocket session carries
// many request/response exchanges, correlated by request id. The license is
// rate-limited, so every outbound query passes through a limiter.
//
// Key messages: query (outbound), result, error (inbound), plus transport
// pings for keepalive.
package feed
