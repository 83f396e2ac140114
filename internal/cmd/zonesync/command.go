package zonesync

import (
	"time"

	"github.com/spf13/cobra"
)

var addZoneCmd = &cobra.Command{
	Use:   "add-zone [zone]",
	Short: "Create a zone at the provider and sync its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddZone,
}

var getZoneIDCmd = &cobra.Command{
	Use:   "get-zone-id [zone]",
	Short: "Print the provider zone id for a zone name",
	Long: `Print the provider zone id for a zone name.

With --resolve the argument may be any host name; its parent domains are tried
from the registrable domain upwards until one of them is a zone at the provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runGetZoneID,
}

var deleteZoneCmd = &cobra.Command{
	Use:   "delete-zone [zone]",
	Short: "Delete a zone and all its records from the provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteZone,
}

var syncZoneCmd = &cobra.Command{
	Use:   "sync-zone [zone]",
	Short: "Make the provider zone match the local nameserver",
	Long: `Make the provider zone match the local nameserver.

The zone is created when missing. Remote records absent locally are deleted,
then local records absent remotely are added. Records present on both sides
are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runSyncZone,
}

var planCmd = &cobra.Command{
	Use:   "plan [zone]",
	Short: "Show the records a sync would delete and add",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Sync every zone whose file changed since the last run",
	Long: `Hash every zone file in the zone directory and compare against the stored
hashes. New zones are added, changed zones synced and removed zones deleted at
the provider. A zone's hash is only stored once its sync fully succeeded.`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

var exportCmd = &cobra.Command{
	Use:   "export [zone]",
	Short: "Export the provider records of a zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run detection passes on an interval and expose a status API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// AddCommands attaches the zone sync commands and their shared flags to root.
func AddCommands(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("env", "", "Path to .env file to load before executing")
	pf.String("provider", "", "DNS provider backend (bunny or cloudflare)")
	pf.String("api-key", "", "Provider API key (env: BUNNY_DNS_SYNC_API_KEY)")
	pf.String("api-url", "", "Provider API base URL")
	pf.String("nameserver", "", "Local nameserver to transfer zones from")
	pf.String("source", "", "Local zone source: axfr or file")
	pf.String("zone-dir", "", "Directory holding <zone>.db files")
	pf.String("zone-ext", "", "Zone file extension")
	pf.Duration("timeout", 30*time.Second, "Per request timeout when talking to the provider")
	pf.Duration("transfer-timeout", 60*time.Second, "Zone transfer timeout")
	pf.Bool("dry-run", false, "Compute changes without applying them")
	pf.String("otel-exporter", "", "Trace exporter: none, console, otlp or both")
	pf.String("archive", "", "Snapshot archive backend: none, minio or s3")

	root.AddCommand(addZoneCmd)
	root.AddCommand(getZoneIDCmd)
	root.AddCommand(deleteZoneCmd)
	root.AddCommand(syncZoneCmd)
	root.AddCommand(planCmd)
	root.AddCommand(detectCmd)
	root.AddCommand(exportCmd)
	root.AddCommand(serveCmd)

	initGetZoneIDFlags()
	initDeleteZoneFlags()
	initSyncZoneFlags()
	initPlanFlags()
	initDetectFlags()
	initExportFlags()
	initServeFlags()
}

func initGetZoneIDFlags() {
	getZoneIDCmd.Flags().Bool("resolve", false, "Walk parent domains until a provider zone is found")
}

func initDeleteZoneFlags() {
	deleteZoneCmd.Flags().Bool("yes", false, "Delete without asking for confirmation")
}

func initSyncZoneFlags() {
	syncZoneCmd.Flags().String("report", "", "Write the sync report to this file (json or yaml)")
}

func initPlanFlags() {
	planCmd.Flags().String("output", "", "File to write the plan to (default: stdout)")
	planCmd.Flags().String("format", "", "Plan format: json or yaml (default: from --output extension, else json)")
	planCmd.Flags().Bool("pretty", true, "Pretty-print JSON output")
}

func initDetectFlags() {
	detectCmd.Flags().String("hash-file", "", "File holding the zone hashes of the last run")
	detectCmd.Flags().String("lock-file", "", "Lock file guarding against concurrent runs")
	detectCmd.Flags().String("report", "", "Write the run report to this file (json or yaml)")
}

func initExportFlags() {
	exportCmd.Flags().String("output", "", "File to write the snapshot to (default: stdout)")
	exportCmd.Flags().String("format", "", "Snapshot format: json or yaml")
	exportCmd.Flags().Bool("pretty", true, "Pretty-print JSON output")
	exportCmd.Flags().Bool("upload", false, "Upload the snapshot to the configured archive instead")
	exportCmd.Flags().Bool("list", false, "List archived snapshots of the zone")
	exportCmd.Flags().Int("limit", 20, "Maximum number of archived snapshots to list")
}

func initServeFlags() {
	serveCmd.Flags().String("listen", "", "Address of the status API (default :8080)")
	serveCmd.Flags().Duration("interval", 0, "Run a detection pass on this interval (0 disables)")
	serveCmd.Flags().String("hash-file", "", "File holding the zone hashes of the last run")
	serveCmd.Flags().String("lock-file", "", "Lock file guarding against concurrent runs")
}
