package event

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/domain/model"
)

// Processor passes push events to the build use case and logs the outcome
type Processor struct {
	buildUC interfaces.BuildUseCase
}

// NewProcessor creates a new event processor
func NewProcessor(buildUC interfaces.BuildUseCase) *Processor {
	return &Processor{
		buildUC: buildUC,
	}
}

// Process handles a single push event. Errors are returned with the event
// identity attached; reporting them is up to the caller.
func (p *Processor) Process(ctx context.Context, ev *model.PushEvent) (*model.BuildReport, error) {
	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("source", ev.Source))
	logger := ctxlog.From(ctx)

	report, err := p.buildUC.HandlePush(ctx, ev)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to handle push event",
			goerr.V("event_id", ev.ID),
			goerr.V("ref", ev.Ref),
			goerr.V("repository", ev.Repository.Name),
		)
	}

	if report.Skipped {
		logger.Info("Push event skipped",
			"reason", report.SkipReason,
			"ref", report.Ref,
		)
		return report, nil
	}

	var location string
	if report.Published != nil {
		location = report.Published.Location
	}
	logger.Info("Build completed",
		"repository", report.Repository,
		"revision", report.Revision,
		"groups", report.Groups,
		"location", location,
	)

	return report, nil
}

// ProcessAll handles events in order and stops at the first failure
func (p *Processor) ProcessAll(ctx context.Context, events []*model.PushEvent) ([]*model.BuildReport, error) {
	reports := make([]*model.BuildReport, 0, len(events))
	for _, ev := range events {
		report, err := p.Process(ctx, ev)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
