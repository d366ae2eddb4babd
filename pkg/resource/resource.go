// Package resource defines the MCP resources exposed by bone.
package resource

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// ReadHandler returns the content of a resource.
type ReadHandler func(ctx context.Context, uri string) (string, error)

// StaticResource is a resource with a fixed URI.
type StaticResource struct {
	Resource mcp.Resource
	Handler  ReadHandler
}

// Registry holds static resources by URI.
type Registry struct {
	log       logrus.FieldLogger
	resources map[string]StaticResource
}

// NewRegistry creates an empty Registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:       log.WithField("component", "resource-registry"),
		resources: make(map[string]StaticResource, 8),
	}
}

// RegisterStatic adds res, replacing any resource with the same URI.
func (r *Registry) RegisterStatic(res StaticResource) {
	r.resources[res.Resource.URI] = res
	r.log.WithField("uri", res.Resource.URI).Debug("Registered resource")
}

// ListStatic returns every resource sorted by URI.
func (r *Registry) ListStatic() []mcp.Resource {
	out := make([]mcp.Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, res.Resource)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })

	return out
}

// Read returns the content of the resource at uri.
func (r *Registry) Read(ctx context.Context, uri string) (string, string, error) {
	res, ok := r.resources[uri]
	if !ok {
		return "", "", fmt.Errorf("unknown resource %q", uri)
	}

	text, err := res.Handler(ctx, uri)
	if err != nil {
		return "", "", err
	}

	return text, res.Resource.MIMEType, nil
}

// AddTo registers every resource on an MCP server.
func (r *Registry) AddTo(s *server.MCPServer) {
	for _, res := range r.ListStatic() {
		s.AddResource(res, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			text, mimeType, err := r.Read(ctx, request.Params.URI)
			if err != nil {
				return nil, err
			}

			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: request.Params.URI, MIMEType: mimeType, Text: text},
			}, nil
		})
	}
}
