// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/ssargent/flatjson/pkg/storage"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, server *Server, config ServerConfig) error {
	return StartServer(ctx, server, config)
}

// DefaultArchiveFactory opens pebble-backed archives
type DefaultArchiveFactory struct{}

// NewArchiveFactory creates a new archive factory
func NewArchiveFactory() ArchiveFactory {
	return &DefaultArchiveFactory{}
}

// OpenArchive opens or creates the archive at path
func (f *DefaultArchiveFactory) OpenArchive(path string) (*storage.Archive, error) {
	return storage.NewArchive(path)
}
