package zonesync

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"bunny-dns-sync/internal/zonesync"
)

func runAddZone(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	report, err := rt.syncer.AddZone(cmd.Context(), args[0])
	return printReport(cmd, report, err, "")
}

func runSyncZone(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	report, err := rt.syncer.SyncZone(cmd.Context(), args[0])
	return printReport(cmd, report, err, mustGetStringFlag(cmd, "report"))
}

func printReport(cmd *cobra.Command, report *zonesync.SyncReport, syncErr error, output string) error {
	if report != nil {
		for _, res := range report.Deleted {
			fmt.Fprintln(cmd.ErrOrStderr(), describeResult(res))
		}
		for _, res := range report.Added {
			fmt.Fprintln(cmd.ErrOrStderr(), describeResult(res))
		}
		if report.Snapshot != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Previous records archived to %s\n", report.Snapshot)
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
		if output != "" {
			if err := zonesync.SaveDocument(report, output, "", true); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
	}
	if syncErr != nil {
		return syncErr
	}
	return report.Err()
}

func runGetZoneID(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	name := args[0]
	if mustGetBoolFlag(cmd, "resolve") {
		zone, id, err := resolveHostZone(cmd.Context(), rt.syncer, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", zone, id)
		return nil
	}
	id, err := rt.syncer.ResolveZone(cmd.Context(), name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runDeleteZone(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	zone := args[0]
	if !mustGetBoolFlag(cmd, "yes") && !rt.syncer.DryRun() {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Delete zone %s and all of its records at %s?", zone, rt.cfg.Provider),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return fmt.Errorf("confirmation aborted: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted; zone left in place")
			return nil
		}
	}

	if err := rt.syncer.DeleteZone(cmd.Context(), zone); err != nil {
		return err
	}
	if rt.syncer.DryRun() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: would be deleted [dry-run]\n", zone)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted\n", zone)
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())

	plan, err := rt.syncer.Plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), summarizePlan(plan))
	return writeDocument(cmd, plan,
		mustGetStringFlag(cmd, "output"),
		mustGetStringFlag(cmd, "format"),
		mustGetBoolFlag(cmd, "pretty"))
}

func summarizePlan(plan *zonesync.Plan) string {
	if plan == nil {
		return "no plan"
	}
	state := "exists"
	if !plan.Exists {
		state = "would be created"
	}
	return fmt.Sprintf("Plan for %s (zone %s): %d delete, %d add (%d local, %d remote)",
		plan.Zone, state, len(plan.Diff.ToDelete), len(plan.Diff.ToAdd), plan.Local, plan.Remote)
}
