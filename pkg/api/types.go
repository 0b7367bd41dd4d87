package api

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/flatjson/pkg/codec"
	"github.com/ssargent/flatjson/pkg/storage"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port          int
	Bind          string
	APIKey        string
	MaxBodySize   int64 // Largest accepted request body, 0 means 4 MiB
	EncodeOptions codec.EncodeOptions
	PrintOptions  codec.PrintOptions
}

// MessageArchive is the part of storage.Archive the service uses.
type MessageArchive interface {
	Put(typeName string, message []byte) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) (*codec.Record, error)
	List(limit int) ([]storage.Entry, error)
}

// TypeInfo describes one table or struct of the loaded schema.
type TypeInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Fields int    `json:"fields"`
	Root   bool   `json:"root,omitempty"`
}

// TypesResponse lists the schema's types.
type TypesResponse struct {
	RootType string     `json:"root_type,omitempty"`
	Objects  []TypeInfo `json:"objects"`
	Enums    []string   `json:"enums"`
}

// MessageInfo describes an archived message.
type MessageInfo struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Size     int       `json:"size"`
	Archived time.Time `json:"archived"`
}

const defaultMaxBodySize = 4 << 20
