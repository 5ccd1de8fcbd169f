package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mowthos/mowthos-gateway/internal/models"
	"github.com/mowthos/mowthos-gateway/internal/registry"
	"github.com/mowthos/mowthos-gateway/internal/utils"
)

type bootstrapStep struct {
	name   string
	params map[string]any
}

// bootstrapSteps is the fixed synchronization sequence a device requires once
// per session before it will honor operator commands. The repeated sync and
// pairing calls are required for the firmware to converge on a stable
// positioning lock; a single pass is not sufficient. Treat the ordering and
// repetition as a protocol contract.
var bootstrapSteps = []bootstrapStep{
	{name: "sync", params: map[string]any{"sync_type": 3}},
	{name: "stop_report_cfg", params: nil},
	{name: "get_report_cfg", params: nil},
	{name: "rtk_pairing", params: map[string]any{"op": 1}},
	{name: "sync", params: map[string]any{"sync_type": 3}},
	{name: "rtk_pairing", params: map[string]any{"op": 1}},
	{name: "rtk_pairing", params: map[string]any{"op": 1}},
	{name: "sync", params: map[string]any{"sync_type": 3}},
	{name: "rtk_pairing", params: map[string]any{"op": 1}},
}

// BootstrapService runs the per-device synchronization sequence exactly once
// per device per session.
type BootstrapService struct {
	policy      utils.BackoffPolicy
	pacingDelay time.Duration
	logger      zerolog.Logger
}

// NewBootstrapService initializes and returns a new BootstrapService instance.
func NewBootstrapService(policy utils.BackoffPolicy, pacingDelay time.Duration, logger zerolog.Logger) *BootstrapService {
	return &BootstrapService{
		policy:      policy,
		pacingDelay: pacingDelay,
		logger:      logger,
	}
}

// EnsureBootstrapped runs the bootstrap sequence on the handle unless it has
// already completed for the current session. Concurrent callers for the same
// device serialize on the handle's bootstrap lock and the loser observes the
// winner's result. The bootstrap-done flag is only set after all steps
// succeed, so a cancelled run leaves the handle eligible for another attempt.
func (bs *BootstrapService) EnsureBootstrapped(ctx context.Context, handle *registry.DeviceHandle) error {
	handle.LockBootstrap()
	defer handle.UnlockBootstrap()

	if handle.BootstrapDone() {
		return nil
	}

	bs.logger.Info().Str("device", handle.Name).Msg("Running device bootstrap sequence")
	handle.SetSuspended(false)

	for i, step := range bootstrapSteps {
		stepName := fmt.Sprintf("bootstrap_%d_%s", i+1, step.name)
		_, err := utils.Retry(ctx, bs.logger, stepName, bs.policy, func(ctx context.Context) (*models.CommandAck, error) {
			return handle.Transport().SendCommand(ctx, step.name, step.params)
		})
		if err != nil {
			bs.logger.Warn().
				Err(err).
				Str("device", handle.Name).
				Int("step", i+1).
				Str("command", step.name).
				Msg("Bootstrap sequence aborted; device may still accept commands")
			return fmt.Errorf("bootstrap step %d (%s) for %s: %w", i+1, step.name, handle.Name, err)
		}

		// The firmware needs breathing room between sync commands.
		if err := utils.Sleep(ctx, bs.pacingDelay); err != nil {
			return err
		}
	}

	handle.SetBootstrapDone(true)
	bs.logger.Info().Str("device", handle.Name).Msg("Device bootstrap sequence complete")
	return nil
}
