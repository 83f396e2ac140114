package zonesync

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.close(cmd.Context())
	zone := args[0]

	if mustGetBoolFlag(cmd, "list") {
		if rt.archiver == nil {
			return errors.New("--list needs an archive backend (set archive to minio or s3)")
		}
		infos, err := rt.archiver.List(cmd.Context(), zone, mustGetIntFlag(cmd, "limit"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tLAST MODIFIED")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
		}
		return w.Flush()
	}

	snapshot, err := rt.syncer.Export(cmd.Context(), zone)
	if err != nil {
		return err
	}

	if mustGetBoolFlag(cmd, "upload") {
		if rt.archiver == nil {
			return errors.New("--upload needs an archive backend (set archive to minio or s3)")
		}
		key, err := rt.archiver.Upload(cmd.Context(), snapshot)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %d record(s) archived to %s\n", zone, len(snapshot.Records), key)
		return nil
	}

	return writeDocument(cmd, snapshot,
		mustGetStringFlag(cmd, "output"),
		mustGetStringFlag(cmd, "format"),
		mustGetBoolFlag(cmd, "pretty"))
}
