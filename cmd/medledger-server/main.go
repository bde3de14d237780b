package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/medledger/internal/config"
)

var (
	rootCmd = &cobra.Command{
		Use:   "medledger-server",
		Short: "Medical record ledger with owner-controlled read access",
		Long: `medledger-server stores content-addressed medical record pointers,
mints one asset token per record and enforces owner-granted read access.
Run without a subcommand to serve the HTTP API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the gRPC health service",
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations and print the schema version",
		RunE:  runMigrate,
	}

	recordsCmd = &cobra.Command{
		Use:   "records",
		Short: "Inspect records in the configured backend",
	}
	listRecordsCmd = &cobra.Command{
		Use:   "list",
		Short: "List record ids minted by an owner, oldest first",
		RunE:  runListRecords,
	}
	showRecordCmd = &cobra.Command{
		Use:   "show",
		Short: "Show one record as seen by a caller",
		RunE:  runShowRecord,
	}
	nextIDCmd = &cobra.Command{
		Use:   "next-id",
		Short: "Print the id the next mint will receive",
		RunE:  runNextID,
	}

	ownerFlag  string
	idFlag     uint64
	callerFlag string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(listRecordsCmd)
	listRecordsCmd.Flags().StringVar(&ownerFlag, "owner", "", "Owner identity")
	_ = listRecordsCmd.MarkFlagRequired("owner")

	recordsCmd.AddCommand(showRecordCmd)
	showRecordCmd.Flags().Uint64Var(&idFlag, "id", 0, "Record id")
	showRecordCmd.Flags().StringVar(&callerFlag, "caller", "", "Identity to read as (owner or grantee)")
	_ = showRecordCmd.MarkFlagRequired("id")
	_ = showRecordCmd.MarkFlagRequired("caller")

	recordsCmd.AddCommand(nextIDCmd)
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "medledger-server ", log.LstdFlags|log.LUTC)
}

func loadConfig() (config.Config, error) {
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
