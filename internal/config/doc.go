// Package config loads and validates YAML configuration for the data layer.
//
// The loader expands ${VAR} environment references before parsing, applies
// defaults for optional fields, and validates required ones. The file store
// root may also come from the FEEDCACHE_ROOT environment variable; when no
// root and no backend are configured, local caching is disabled and every
// request goes to the feed.
package config
