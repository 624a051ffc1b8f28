package replicate

import (
	"context"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// Accepted property-name variants for the dependency-bearing fields on
// template pages. Ids are accumulated across every variant present, not
// first-match-wins.
var (
	blockingVariants  = []string{"Blocking", "Blocks", "Is Blocking"}
	blockedByVariants = []string{"Blocked By", "Blocked-by", "Waiting On"}
)

// ResolveDependencies rewrites the blocking / blocked-by relations of every
// replica whose template carries them, pointing them at sibling replica ids
// through the name map. It is safe to call per batch for isolated runs; the
// runner calls it once over the union of all batches so dependencies spanning
// template groups resolve too.
//
// Unresolvable references (names outside the map, failed re-fetches) are
// dropped and logged, never fatal. A record with nothing resolvable on either
// field receives no update call at all. Returns the number of replicas
// updated.
func (r *Runner) ResolveDependencies(ctx context.Context, templates []Template, names *NameMap) int {
	resolved := 0
	for _, tmpl := range templates {
		if tmpl.Name == "" {
			continue
		}
		replicaID, ok := names.Lookup(tmpl.Name)
		if !ok {
			// The template failed to replicate; nothing to rewrite.
			continue
		}

		// Re-fetch the template: the collection-pass copy may predate
		// late edits to its dependency fields.
		page, err := r.client.RetrievePage(ctx, tmpl.ID)
		if err != nil {
			r.logger.Warn("dependency resolution: template re-fetch failed",
				zap.String("template", tmpl.ID), zap.Error(err))
			continue
		}

		blockingRefs := collectRelationIDs(page.Properties, blockingVariants)
		blockedByRefs := collectRelationIDs(page.Properties, blockedByVariants)
		if len(blockingRefs) == 0 && len(blockedByRefs) == 0 {
			continue
		}

		blocking := r.resolveRefs(ctx, blockingRefs, names)
		blockedBy := r.resolveRefs(ctx, blockedByRefs, names)
		if len(blocking) == 0 && len(blockedBy) == 0 {
			continue
		}

		props := make(map[string]notion.PropertyValue, 2)
		if len(blocking) > 0 {
			props[r.cfg.BlockingProperty] = notion.RelationValue(blocking...)
		}
		if len(blockedBy) > 0 {
			props[r.cfg.BlockedByProperty] = notion.RelationValue(blockedBy...)
		}
		if _, err := r.client.UpdatePage(ctx, replicaID, props); err != nil {
			r.logger.Error("dependency resolution: replica update failed",
				zap.String("replica", replicaID), zap.String("template", tmpl.ID), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved
}

// resolveRefs maps referenced template ids to replica ids: fetch the
// referenced template for its name, then look the name up in the run map.
func (r *Runner) resolveRefs(ctx context.Context, refIDs []string, names *NameMap) []string {
	var out []string
	for _, id := range refIDs {
		ref, err := r.client.RetrievePage(ctx, id)
		if err != nil {
			r.logger.Warn("dependency resolution: referenced template fetch failed",
				zap.String("reference", id), zap.Error(err))
			continue
		}
		name, _ := DeriveName(ref.Properties)
		if name == "" {
			r.logger.Warn("dependency resolution: referenced template has no name",
				zap.String("reference", id))
			continue
		}
		replicaID, ok := names.Lookup(name)
		if !ok {
			r.logger.Warn("dependency resolution: reference outside this run, dropped",
				zap.String("reference", id), zap.String("name", name))
			continue
		}
		out = append(out, replicaID)
	}
	return out
}

// collectRelationIDs unions relation ids across every variant property
// present, preserving first-seen order and dropping duplicates.
func collectRelationIDs(props map[string]notion.PropertyValue, variants []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range variants {
		pv, ok := props[key]
		if !ok {
			continue
		}
		for _, id := range pv.RelationIDs() {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
