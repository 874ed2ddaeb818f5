// Package conn shares one upstream feed session between concurrent
// callers. The session is reference counted: the first acquisition dials,
// later acquisitions reuse the live session, and the last release tears it
// down. Licensed feeds meter concurrent sessions, so the process holds at
// most one at a time.
package conn
