// Package store persists fetched series locally so that repeated range
// queries hit the feed only for dates not yet seen. Two backends are
// provided, files under a root directory and a postgres table, plus a
// disabled store used when neither is configured.
//
// Stores hold raw rows exactly as fetched. Adjustment is applied by the
// planner on the way out, never before persisting.
package store
