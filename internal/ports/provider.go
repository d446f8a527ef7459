package ports

import (
	"context"

	"resolvemap/internal/resolvemap"
	"resolvemap/internal/types"
)

// ResolveMapProviderPort describes the resources reachable from a root
// resource of one container format.
//
// CreateResolveMap must be deterministic for unchanged input, must not
// modify the resource and must either return a complete map or an error.
// Every key it registers is anchored below request.ContainerKey.
type ResolveMapProviderPort interface {
	Name() types.ProviderName
	CreateResolveMap(ctx context.Context, request types.ScanRequest) (*resolvemap.ResolveMap, error)
}

// ProviderPolicyPort picks the provider for a resource from its extension
// and sniffed MIME type.
type ProviderPolicyPort interface {
	Select(extension string, mimeType string) (types.ProviderSelection, error)
}
