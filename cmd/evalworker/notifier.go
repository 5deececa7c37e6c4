package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sakaicontrib/evaluation-sub013/v1/schedule"
)

// logNotifier records notifications in the worker log. Deployments with a
// real delivery channel (mail, portal messages) plug their own
// dispatch.Notifier in here.
type logNotifier struct {
	log zerolog.Logger
}

func (n logNotifier) SendCreated(ctx context.Context, evalID int64) error {
	n.log.Info().Int64("evaluation", evalID).Msg("notify: evaluation created")
	return nil
}

func (n logNotifier) SendAvailable(ctx context.Context, evalID int64) error {
	n.log.Info().Int64("evaluation", evalID).Msg("notify: evaluation available")
	return nil
}

func (n logNotifier) SendReminder(ctx context.Context, evalID int64, audience string) error {
	n.log.Info().Int64("evaluation", evalID).Str("audience", audience).Msg("notify: reminder")
	return nil
}

func (n logNotifier) SendResultsViewable(ctx context.Context, evalID int64, includeEvaluatees, includeAdmins bool, job schedule.JobType) error {
	n.log.Info().
		Int64("evaluation", evalID).
		Bool("evaluatees", includeEvaluatees).
		Bool("admins", includeAdmins).
		Stringer("job", job).
		Msg("notify: results viewable")
	return nil
}
