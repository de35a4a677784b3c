package main

import (
	"context"
	"os"
	"os/exec"

	zlog "github.com/rs/zerolog/log"
)

// hookStageEnv tells a hook command which lifecycle stage invoked it.
const hookStageEnv = "PIBOX_HOOK_STAGE"

// runHooks runs the shell commands configured for a lifecycle stage in
// order and returns how many failed. A failing hook never stops the ones
// after it; a cancelled ctx kills the running hook and skips the rest.
func runHooks(ctx context.Context, hooks []string, stage string) int {
	if len(hooks) == 0 {
		return 0
	}

	zlog.Info().Msgf("hooks: running: stage=%s count=%d", stage, len(hooks))

	failed := 0
	for i, hook := range hooks {
		if ctx.Err() != nil {
			zlog.Warn().Msgf("hooks: cancelled: stage=%s skipped=%d", stage, len(hooks)-i)
			return failed + len(hooks) - i
		}

		zlog.Debug().Msgf("hooks: exec: stage=%s index=%d cmd=%q", stage, i, hook)
		// sh -c keeps redirection and pipes available to hook authors
		cmd := exec.CommandContext(ctx, "sh", "-c", hook)
		cmd.Env = append(os.Environ(), hookStageEnv+"="+stage)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			failed++
			zlog.Error().Err(err).Msgf("hooks: failed: stage=%s index=%d cmd=%q", stage, i, hook)
		}
	}
	return failed
}
