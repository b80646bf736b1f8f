package app

import (
	"context"
	"strings"

	"relocate/internal/core/errors"
	"relocate/internal/core/ports"
	"relocate/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type moveService struct {
	app *App
}

var _ ports.MoveService = (*moveService)(nil)

func NewMoveService(app *App) ports.MoveService {
	return &moveService{app: app}
}

func (a *App) MoveService() ports.MoveService {
	return NewMoveService(a)
}

func (s *moveService) Move(ctx context.Context, req ports.MoveRequest) (*ports.MoveResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "moveService.Move", trace.WithAttributes(
		attribute.StringSlice("move.sources", req.Sources),
		attribute.String("move.destination", req.Destination),
		attribute.Bool("move.dry_run", req.DryRun),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, errors.New(errors.CodeInternal, "app is required")
	}
	if len(req.Sources) == 0 {
		return nil, errors.New(errors.CodeValidationError, "at least one source is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, errors.New(errors.CodeValidationError, "destination is required")
	}
	if req.Alias == "" {
		req.Alias = s.app.Config.Move.Alias
	}

	result, err := s.app.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.Int("run.files_changed", len(result.FilesChanged)),
		attribute.Int("run.diagnostics", len(result.Diagnostics)),
	)
	return result, nil
}
