// Package store defines interfaces for persistence dependencies (the job
// progress history log). Implementations live in other packages; this package
// must not import database drivers or concrete clients.
package store
