package store

import (
	"context"
	"fmt"

	"github.com/roach88/coedit/internal/mirror"
	"github.com/roach88/coedit/internal/patcher"
)

// Replay rebuilds the mirror of docID by applying its update log in order
// onto a fresh doc created with opts.
func (s *Store) Replay(ctx context.Context, docID string, opts ...mirror.Option) (*mirror.Doc, error) {
	updates, err := s.ReadUpdates(ctx, docID)
	if err != nil {
		return nil, err
	}

	doc := mirror.NewDoc(opts...)
	for _, su := range updates {
		for _, op := range su.Update.Ops {
			if err := patcher.Apply(doc, op); err != nil {
				return nil, fmt.Errorf("replay %s update %d: %w", docID, su.Seq, err)
			}
		}
	}
	return doc, nil
}
