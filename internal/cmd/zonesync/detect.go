package zonesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"bunny-dns-sync/internal/fingerprint"
	"bunny-dns-sync/internal/lockfile"
)

// errSkipped marks a pass that did not run because another one holds the lock.
var errSkipped = errors.New("detection pass skipped")

func runDetect(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())
	if err := rt.cfg.RequireZoneDir(); err != nil {
		return err
	}

	report, err := detectOnce(cmd.Context(), rt)
	if errors.Is(err, errSkipped) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Another instance is running; exiting")
		return nil
	}
	if report != nil {
		for _, z := range report.Zones {
			status := "ok"
			if !z.OK() {
				status = "failed: " + z.Error
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", z.Action, z.Zone, status)
		}
		if output := mustGetStringFlag(cmd, "report"); output != "" {
			if err := writeDocument(cmd, report, output, "", true); err != nil {
				return err
			}
		}
	}
	if err != nil {
		return err
	}
	return report.Err()
}

// detectOnce runs one change detection pass under the run lock.
func detectOnce(ctx context.Context, rt *runtime) (*fingerprint.RunReport, error) {
	lock, err := lockfile.Acquire(rt.cfg.LockFile, rt.cfg.LockStaleAfter)
	if errors.Is(err, lockfile.ErrLocked) {
		rt.log.Info(ctx, "another detection pass holds the lock", "lock", rt.cfg.LockFile)
		return nil, errSkipped
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			rt.log.Warn(ctx, "releasing lock failed", "lock", lock.Path(), "error", err)
		}
	}()

	fs := afero.NewOsFs()
	store := fingerprint.NewStore(fs, rt.cfg.HashFile)
	detector := fingerprint.NewDetector(store, rt.syncer, fingerprint.DetectorOptions{
		Fs:      fs,
		ZoneDir: rt.cfg.ZoneDir,
		Ext:     rt.cfg.ZoneExt,
		DryRun:  rt.cfg.DryRun,
		Log:     rt.log,
	})
	report, err := detector.Run(ctx)
	if report != nil {
		rt.log.Info(ctx, "detection pass finished",
			"run_id", report.RunID,
			"hash_file", store.Path(),
			"zones", len(report.Zones),
			"failed", report.Failed(),
			"aborted", report.Aborted)
	}
	return report, err
}
