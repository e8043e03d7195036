package batch

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lexport/internal/interfaces"
	"github.com/ternarybob/lexport/internal/models"
	"github.com/ternarybob/lexport/internal/services/account"
	"github.com/ternarybob/lexport/internal/services/auth"
	"github.com/ternarybob/lexport/internal/services/export"
)

// ExportWorkflow is the production Workflow: auth resolver, account switcher,
// and export engine assembled per attempt around the session's driver.
type ExportWorkflow struct {
	AuthOpts   auth.Options
	EngineOpts export.Options
	Logger     arbor.ILogger
}

func (w *ExportWorkflow) Run(ctx context.Context, driver interfaces.PageDriver, job *models.ClientJob) (string, error) {
	resolver := auth.NewResolver(driver, w.AuthOpts, w.Logger)
	switcher := account.NewSwitcher(driver, w.Logger)
	engine := export.NewEngine(driver, resolver, switcher, w.EngineOpts, w.Logger)
	return engine.Run(ctx, job)
}
