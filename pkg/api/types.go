package api

import (
	"github.com/ssargent/nifkit/pkg/codec"
	"github.com/ssargent/nifkit/pkg/graph"
	"github.com/ssargent/nifkit/pkg/nif"
	"github.com/ssargent/nifkit/pkg/schema"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Format  *FormatError `json:"format,omitempty"`
}

// FormatError locates a codec failure in the submitted file.
type FormatError struct {
	Kind   string `json:"kind"`
	Offset int    `json:"offset"`
	Record int    `json:"record"`
	Type   string `json:"type,omitempty"`
	Field  string `json:"field,omitempty"`
}

// VersionInfo is one row of the version table.
type VersionInfo struct {
	Version     string `json:"version"`
	Name        string `json:"name,omitempty"`
	Explicit    bool   `json:"explicit"`
	Unsupported bool   `json:"unsupported,omitempty"`
	Types       int    `json:"types"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Address string
	// APIKey guards /api/v1. Empty disables the check.
	APIKey string
	// MaxBodyBytes caps uploaded files.
	MaxBodyBytes int64
}

// NIFCodec is the subset of the graph codec the handlers use.
type NIFCodec interface {
	Decode(data []byte) (*graph.Graph, error)
	Convert(data []byte, target *nif.FormatVersion, t graph.Transform) (*codec.Conversion, error)
	Registry() *schema.Registry
}
