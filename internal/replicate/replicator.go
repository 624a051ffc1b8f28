package replicate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// replicateTemplate turns one template into one replica: sanitize, translate
// the scheduled date, create, best-effort content copy, and register the
// template name in the run's name map. Only the create step can fail the
// record; content loss is acceptable, record existence is not.
func (r *Runner) replicateTemplate(ctx context.Context, tmpl Template, epic Epic, offset time.Duration, schema notion.Schema, names *NameMap) (string, error) {
	props, warnings := SanitizeProperties(tmpl, epic, schema, r.cfg.TemplateFilterProperty, r.cfg.EpicRelationProperty)
	for _, w := range warnings {
		r.logger.Warn("sanitize: "+w,
			zap.String("template", tmpl.ID), zap.String("epic", epic.Name))
	}

	if pv, ok := props[r.cfg.DateProperty]; ok && pv.Type == notion.TypeDate && pv.Date != nil {
		translated, warns := TranslateDate(*pv.Date, offset)
		for _, w := range warns {
			r.logger.Warn("date translation: "+w,
				zap.String("template", tmpl.ID), zap.String("name", tmpl.Name))
		}
		props[r.cfg.DateProperty] = notion.DateProperty(translated)
	}

	page, err := r.client.CreatePage(ctx, r.cfg.TasksDB, props, tmpl.Icon)
	if err != nil {
		return "", fmt.Errorf("create instance of template %s: %s", tmpl.ID, remoteMessage(err))
	}

	CopyContent(ctx, r.client, tmpl.ID, page.ID, r.logger)

	if tmpl.Name != "" {
		if names.Register(tmpl.Name, page.ID) {
			r.logger.Warn("duplicate template name in run, dependency resolution is ambiguous for it",
				zap.String("name", tmpl.Name), zap.String("replica", page.ID))
		}
	}
	return page.ID, nil
}

// remoteMessage renders a record store failure as the human-readable message
// carried into batch summaries.
func remoteMessage(err error) string {
	switch notion.KindOf(err) {
	case notion.KindUnauthorized:
		return "record store rejected the integration token"
	case notion.KindNotFound:
		return "record store object not found: " + err.Error()
	case notion.KindValidation:
		return "record store rejected the payload: " + err.Error()
	case notion.KindRateLimited:
		return "record store rate limit exceeded"
	default:
		return err.Error()
	}
}
