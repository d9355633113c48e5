package history

import (
	"context"
	"fmt"
)

// SourceRefWriter updates the one asset field a restore touches.
type SourceRefWriter interface {
	SetSourceRef(ctx context.Context, assetID, ref string) error
}

// Restore points the asset back at a stored version. It does not re-render.
func (s *Store) Restore(ctx context.Context, assets SourceRefWriter, assetID, versionID string) (string, error) {
	v, err := s.Version(ctx, assetID, versionID)
	if err != nil {
		return "", err
	}
	if err := assets.SetSourceRef(ctx, assetID, v.RenderedRef); err != nil {
		return "", fmt.Errorf("failed to restore version %s: %w", versionID, err)
	}
	return v.RenderedRef, nil
}
