package replicate

import (
	"context"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// CopyContent duplicates a template's content blocks under a freshly created
// replica, best-effort. Provenance (ids, timestamps, authorship) is stripped
// before re-attachment. Any failure while copying a subtree is logged and
// skipped; the replica itself is never rolled back over lost content.
func CopyContent(ctx context.Context, client notion.Client, srcID, dstID string, logger *zap.Logger) {
	blocks, err := client.ListChildren(ctx, srcID)
	if err != nil {
		logger.Warn("content copy: listing source blocks failed",
			zap.String("source", srcID), zap.Error(err))
		return
	}
	copyBlocks(ctx, client, blocks, dstID, logger)
}

// copyBlocks appends one level of cleaned blocks, then recurses into source
// blocks that have children. Nested children are appended under the last
// appended block when that block is a container. This is a best-effort
// structural match, not a position-exact reconstruction: when several
// siblings at one level carry children, all of their subtrees land under the
// last container.
func copyBlocks(ctx context.Context, client notion.Client, src []notion.Block, dstID string, logger *zap.Logger) {
	if len(src) == 0 {
		return
	}
	cleaned := make([]notion.Block, 0, len(src))
	for _, b := range src {
		cleaned = append(cleaned, b.Clean())
	}
	appended, err := client.AppendChildren(ctx, dstID, cleaned)
	if err != nil {
		logger.Warn("content copy: appending blocks failed",
			zap.String("destination", dstID), zap.Error(err))
		return
	}
	for _, b := range src {
		if !b.HasChildren {
			continue
		}
		children, err := client.ListChildren(ctx, b.ID)
		if err != nil {
			logger.Warn("content copy: listing nested blocks failed",
				zap.String("block", b.ID), zap.Error(err))
			continue
		}
		if len(appended) == 0 {
			continue
		}
		last := appended[len(appended)-1]
		if !last.IsContainer() {
			logger.Warn("content copy: no container for nested blocks, subtree skipped",
				zap.String("block", b.ID), zap.String("lastAppendedType", last.Type))
			continue
		}
		copyBlocks(ctx, client, children, last.ID, logger)
	}
}
