package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/medledger/internal/config"
	"github.com/BrandonDHaskell/medledger/internal/db"
	"github.com/BrandonDHaskell/medledger/internal/medledger/service"
	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend != config.BackendSQLite {
		return fmt.Errorf("migrate only applies to the sqlite backend (backend=%s)", cfg.Backend)
	}

	// Open applies pending migrations.
	sqlDB, err := openSQLite(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	v, err := db.SchemaVersion(cmd.Context(), sqlDB)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, cfg.DBPath)
	return nil
}

// withService opens the configured backend for a one-shot command.  The
// token minter is unused by read-only commands.
func withService(cmd *cobra.Command, fn func(*service.RecordService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend == config.BackendMemory {
		return fmt.Errorf("records commands need a persistent backend (set MEDLEDGER_BACKEND)")
	}

	be, err := openBackend(cmd.Context(), cfg, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer be.Close()

	return fn(service.NewRecordService(be.ledger, nil, be.audit, service.Options{}))
}

func runListRecords(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(s *service.RecordService) error {
		ids, err := s.ListForOwner(cmd.Context(), types.Identity(ownerFlag))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	})
}

func runShowRecord(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(s *service.RecordService) error {
		id := types.RecordID(idFlag)
		e, err := s.GetRecord(cmd.Context(), types.Identity(callerFlag), id)
		if err != nil {
			return err
		}
		tokenID, err := s.TokenFor(cmd.Context(), id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			types.RecordResponse
			TokenID types.TokenID `json:"token_id"`
		}{
			RecordResponse: types.RecordResponse{
				RecordID:       id,
				Owner:          e.Owner,
				ContentPointer: e.ContentPointer,
				CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
				Verified:       e.Verified,
				AccessList:     e.AccessList,
			},
			TokenID: tokenID,
		})
	})
}

func runNextID(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(s *service.RecordService) error {
		id, err := s.NextID(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}
