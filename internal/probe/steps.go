// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"errors"

	"github.com/ManuGH/getprobe/internal/getapp"
	"github.com/ManuGH/getprobe/internal/log"
	"github.com/ManuGH/getprobe/internal/metrics"
	"github.com/ManuGH/getprobe/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Step names, used as the test_name metric label.
const (
	StepLogin                = "login"
	StepDiscovery            = "discovery"
	StepImportMap            = "import_map"
	StepImportStatus         = "import_status"
	StepUpdateDownloadStatus = "update_download_status"
	StepPrepareDelivery      = "prepare_delivery"
	StepDownloadFiles        = "download_files"
	StepUpdateInventory      = "update_inventory"
	StepHealthCheck          = "health_check"
	StepRunFullTest          = "run_full_test"
)

// Failure reasons, used as the failure_reason metric label.
const (
	ReasonAuthFailed         = "auth_failed"
	ReasonMissingCredentials = "missing_credentials"
	ReasonAPIError           = "api_error"
	ReasonCreateFailed       = "create_failed"
	ReasonNoRequestID        = "no_request_id"
	ReasonImportError        = "import_error"
	ReasonPollExhausted      = "poll_exhausted"
	ReasonPreparationFailed  = "preparation_failed"
	ReasonGetURLFailed       = "get_url_failed"
	ReasonNoURL              = "no_url"
	ReasonDownloadFailed     = "download_failed"
	ReasonUpdateFailed       = "update_failed"
	ReasonUnhealthy          = "unhealthy"
	ReasonUnexpectedError    = "unexpected_error"
	ReasonStatusUpdatePrefix = "status_update_failed_"
)

func (r *Runner) scenario(ctx context.Context, st *state) error {
	if err := r.step(ctx, st, StepLogin, r.login); err != nil {
		return err
	}
	if err := r.step(ctx, st, StepDiscovery, func(ctx context.Context, _ *StepResult) error {
		return r.discovery(ctx, st)
	}); err != nil {
		return err
	}
	if err := r.step(ctx, st, StepImportMap, func(ctx context.Context, _ *StepResult) error {
		return r.importMap(ctx, st)
	}); err != nil {
		return err
	}
	if err := r.step(ctx, st, StepImportStatus, func(ctx context.Context, res *StepResult) error {
		return r.waitForImport(ctx, st, res)
	}); err != nil {
		return err
	}

	// The outcome of this update is recorded but does not end the run.
	if err := r.updateStatus(ctx, st, getapp.DeliveryStatusStart); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	var url string
	if err := r.step(ctx, st, StepPrepareDelivery, func(ctx context.Context, _ *StepResult) error {
		var err error
		url, err = r.prepareDelivery(ctx, st)
		return err
	}); err != nil {
		return err
	}
	if err := r.step(ctx, st, StepDownloadFiles, func(ctx context.Context, _ *StepResult) error {
		return r.downloadFiles(ctx, url)
	}); err != nil {
		return err
	}

	for i := 0; i < r.opts.StatusUpdates; i++ {
		_ = r.updateStatus(ctx, st, getapp.DeliveryStatusStart)
		if err := r.sleep(ctx, r.opts.StatusUpdateInterval); err != nil {
			return err
		}
	}

	if err := r.step(ctx, st, StepUpdateInventory, func(ctx context.Context, _ *StepResult) error {
		if err := r.api.UpdateInventory(ctx, st.deviceID, st.importID); err != nil {
			return fail(StepUpdateInventory, ReasonUpdateFailed, err)
		}
		return nil
	}); err != nil {
		return err
	}
	return r.step(ctx, st, StepHealthCheck, func(ctx context.Context, _ *StepResult) error {
		return r.checkHealth(ctx)
	})
}

func (r *Runner) login(ctx context.Context, _ *StepResult) error {
	err := r.api.Login(ctx, r.opts.Username, r.opts.Password)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, getapp.ErrMissingCredentials):
		return fail(StepLogin, ReasonMissingCredentials, err)
	default:
		return fail(StepLogin, ReasonAuthFailed, err)
	}
}

func (r *Runner) discovery(ctx context.Context, st *state) error {
	if err := r.api.Discover(ctx, DiscoveryPayload(st.deviceID, r.clock.Now())); err != nil {
		return fail(StepDiscovery, ReasonAPIError, err)
	}
	return nil
}

// importMap creates the import and reports its start. The status update
// decides the outcome of the step.
func (r *Runner) importMap(ctx context.Context, st *state) error {
	bbox := st.bboxes[r.intn(len(st.bboxes))]
	id, err := r.api.CreateImport(ctx, st.deviceID, getapp.MapProperties{
		ProductName:      r.opts.ProductName,
		ProductID:        r.opts.ProductName,
		ZoomLevel:        12,
		BoundingBox:      bbox,
		TargetResolution: 0,
		LastUpdateAfter:  0,
	})
	if err != nil {
		return fail(StepImportMap, ReasonCreateFailed, err)
	}
	st.importID = id
	st.rep.ImportRequestID = id
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.ImportRequestKey, id))
	log.FromContext(ctx).Info().
		Str(log.FieldEvent, "probe.import_created").
		Str(log.FieldImportRequestID, id).
		Str("bbox", bbox).
		Msg("map import created")

	if err := r.updateStatus(ctx, st, getapp.DeliveryStatusStart); err != nil {
		return &StepError{Step: StepImportMap, Reason: ReasonStatusUpdatePrefix + getapp.DeliveryStatusStart, Err: err}
	}
	return nil
}

// waitForImport polls until the import reaches a terminal status. Running out
// of attempts is logged and the run continues.
func (r *Runner) waitForImport(ctx context.Context, st *state, res *StepResult) error {
	if st.importID == "" {
		return fail(StepImportStatus, ReasonNoRequestID, nil)
	}
	logger := log.FromContext(ctx)

	for attempt := 1; attempt <= r.opts.PollAttempts; attempt++ {
		res.Attempts = attempt
		status, err := r.api.ImportStatus(ctx, st.importID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				metrics.IncImportStatus(ReasonAPIError)
			}
			return &StepError{Step: StepImportStatus, Reason: ReasonAPIError, Err: err}
		}
		trace.SpanFromContext(ctx).AddEvent("poll", trace.WithAttributes(
			attribute.Int(telemetry.ProbeAttemptKey, attempt),
			attribute.String(telemetry.ImportStatusKey, status.Status),
		))

		if status.Terminal() {
			if status.Status == getapp.ImportStatusError {
				return &StepError{Step: StepImportStatus, Reason: ReasonImportError,
					Err: errors.New("import finished with status Error: " + status.Error)}
			}
			return nil
		}

		label := status.Status
		if label == "" {
			label = "unknown"
		}
		metrics.IncImportStatus(label)
		logger.Debug().
			Str(log.FieldEvent, "probe.import_pending").
			Int(log.FieldAttempt, attempt).
			Str("status", label).
			Msg("import not finished yet")

		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return err
		}
	}

	res.Reason = ReasonPollExhausted
	logger.Warn().
		Str(log.FieldEvent, "probe.import_poll_exhausted").
		Int(log.FieldAttempt, r.opts.PollAttempts).
		Msg("import did not finish within the polling budget, continuing")
	return nil
}

// updateStatus reports delivery progress as its own step.
func (r *Runner) updateStatus(ctx context.Context, st *state, status string) error {
	return r.step(ctx, st, StepUpdateDownloadStatus, func(ctx context.Context, _ *StepResult) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(telemetry.DeliveryStatusKey, status))
		req := downloadStatus(st.deviceID, st.importID, status, r.clock.Now())
		if err := r.api.UpdateDownloadStatus(ctx, req); err != nil {
			return fail(StepUpdateDownloadStatus, ReasonStatusUpdatePrefix+status, err)
		}
		return nil
	})
}

func (r *Runner) prepareDelivery(ctx context.Context, st *state) (string, error) {
	if err := r.api.PrepareDelivery(ctx, st.importID, st.deviceID); err != nil {
		return "", fail(StepPrepareDelivery, ReasonPreparationFailed, err)
	}
	prepared, err := r.api.PreparedDelivery(ctx, st.importID)
	if err != nil {
		return "", fail(StepPrepareDelivery, ReasonGetURLFailed, err)
	}
	st.rep.DownloadURL = prepared.URL
	log.FromContext(ctx).Info().
		Str(log.FieldEvent, "probe.delivery_prepared").
		Str(log.FieldURL, prepared.URL).
		Msgf("prepared delivery URL: %s", prepared.URL)
	return prepared.URL, nil
}

// downloadFiles fetches the GeoPackage and its JSON sidecar. Both are
// attempted even if the first fails.
func (r *Runner) downloadFiles(ctx context.Context, url string) error {
	if url == "" {
		return fail(StepDownloadFiles, ReasonNoURL, nil)
	}
	var errs []error
	for _, f := range []struct{ fileType, url string }{
		{getapp.FileTypeGPKG, url},
		{getapp.FileTypeJSON, getapp.JSONSidecarURL(url)},
	} {
		n, err := r.api.Download(ctx, f.url, f.fileType)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				metrics.IncDownloadFailure(f.fileType)
			}
			errs = append(errs, err)
			continue
		}
		trace.SpanFromContext(ctx).AddEvent("downloaded", trace.WithAttributes(
			attribute.String(telemetry.DownloadTypeKey, f.fileType),
			attribute.Int64(telemetry.DownloadBytesKey, n),
		))
	}
	if len(errs) > 0 {
		return &StepError{Step: StepDownloadFiles, Reason: ReasonDownloadFailed, Err: errors.Join(errs...)}
	}
	return nil
}

// checkHealth probes every service. Each unhealthy endpoint is counted under
// its own failure reason.
func (r *Runner) checkHealth(ctx context.Context) error {
	var errs []error
	for _, ep := range getapp.HealthEndpoints {
		if err := r.api.CheckHealth(ctx, ep); err != nil {
			if !errors.Is(err, context.Canceled) {
				metrics.IncTestFailure(StepHealthCheck, ep)
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &StepError{Step: StepHealthCheck, Reason: ReasonUnhealthy, Err: errors.Join(errs...)}
	}
	return nil
}
