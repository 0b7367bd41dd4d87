// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/flatjson/pkg/storage"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled or the listener fails
	StartServer(ctx context.Context, server *Server, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}

// ArchiveFactory opens message archives
type ArchiveFactory interface {
	// OpenArchive opens or creates the archive at path
	OpenArchive(path string) (*storage.Archive, error)
}
