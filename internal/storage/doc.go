// Package storage is the optional delivery history log.
//
// It records one row per delivery unit (message or file group) so
// `telesend history` can answer "what did we send and did it work"
// without re-running anything. Nothing is ever resumed from it.
package storage
