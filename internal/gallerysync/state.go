// Package gallerysync keeps a local, cached and optimistically mutated view
// of the remote gallery.
//
// A Synchronizer is meant to be shared: every consumer in the process gets
// the same instance, so that concurrent views collapse into one fetch.
package gallerysync

import "github.com/MrSnakeDoc/folio/internal/domain"

// Status is the lifecycle position of a Synchronizer.
type Status string

const (
	StatusUninitialized        Status = "UNINITIALIZED"
	StatusLoadingFromCache     Status = "LOADING_FROM_CACHE"
	StatusBackgroundRefreshing Status = "BACKGROUND_REFRESHING"
	StatusReady                Status = "READY"
	StatusErrorWithStaleData   Status = "ERROR_WITH_STALE_DATA"
	StatusErrorNoData          Status = "ERROR_NO_DATA"
)

// HasData reports whether Data is meant to be rendered.
func (s Status) HasData() bool {
	switch s {
	case StatusBackgroundRefreshing, StatusReady, StatusErrorWithStaleData:
		return true
	}
	return false
}

// User-facing messages recorded in State.Error.
const (
	MsgOffline       = "Using offline data"
	MsgLoadFailed    = "Failed to load gallery"
	MsgRefreshFailed = "Failed to refresh gallery"
	MsgUpdateFailed  = "Failed to update image, try again"
	MsgDeleteFailed  = "Failed to delete image, try again"
	MsgAddFailed     = "Failed to add image, try again"
)

// State is an immutable snapshot handed to callers and listeners.
type State struct {
	Status Status
	Data   domain.GalleryData
	// Error is empty unless the last operation failed.
	Error string
	// Revision increases on every local write (mutation or rollback).
	// Remote results captured at an older revision are discarded.
	Revision uint64
}

func (st State) clone() State {
	st.Data = st.Data.Clone()
	return st
}
