package cmd

import (
	"github.com/spf13/cobra"

	zonesynccmd "bunny-dns-sync/internal/cmd/zonesync"
	"bunny-dns-sync/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "bunny-dns-sync",
	Short: "Sync authoritative zones from a local nameserver to a hosted DNS provider",
	Long: `bunny-dns-sync keeps zones hosted at BunnyCDN DNS (or Cloudflare) identical to
the zones served by a local nameserver.

Use 'sync-zone' for a single zone, 'plan' to preview what it would change and
'detect' from cron to sync every zone whose file changed since the last run.`,
	Version:      telemetry.Version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default is /etc/bunny-dns-sync.conf)")
	pf.Bool("verbose", false, "verbose output (same as --log-level debug)")
	pf.String("log-format", "", "Log format: human, text or json")
	pf.String("log-level", "", "Log level: debug, info, warn or error")

	zonesynccmd.AddCommands(rootCmd)
}
