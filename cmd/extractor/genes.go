package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mkoziy/genome/extractor/internal/config"
	"github.com/mkoziy/genome/extractor/internal/database"
	"github.com/mkoziy/genome/extractor/internal/errs"
	"github.com/mkoziy/genome/extractor/internal/logging"
	"github.com/mkoziy/genome/extractor/internal/migrations"
	"github.com/mkoziy/genome/extractor/internal/repositories"
)

// storedGene is one row printed by the genes command.
type storedGene struct {
	HGNCID  string   `json:"hgnc_id"`
	Name    string   `json:"name"`
	Aliases []string `json:"alias"`
}

func newGenesCmd() *cobra.Command {
	var (
		configPath string
		dsn        string
		disease    string
	)
	cmd := &cobra.Command{
		Use:   "genes",
		Short: "List stored genes associated with a disease",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if disease == "" {
				return &errs.ConfigError{Err: errors.New("--disease is required")}
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.Database.DSN = dsn
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return &errs.ConfigError{Path: configPath, Err: err}
			}

			ctx := cmd.Context()
			db, err := database.NewDB(cfg.Database.DSN, cfg.Database.Debug)
			if err != nil {
				return &errs.PersistenceError{Op: "open", Key: cfg.Database.DSN, Err: err}
			}
			defer db.Close()
			if err := migrations.RunMigrations(ctx, db, log); err != nil {
				return &errs.PersistenceError{Op: "migrate", Key: cfg.Database.DSN, Err: err}
			}

			genes, err := repositories.GenesForDisease(ctx, db, disease)
			if err != nil {
				return &errs.PersistenceError{Op: "query", Key: disease, Err: err}
			}
			out := make([]storedGene, 0, len(genes))
			for _, g := range genes {
				out = append(out, storedGene{HGNCID: g.HGNCID, Name: g.Name, Aliases: g.AliasNames()})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "    ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Configuration file (optional)")
	cmd.Flags().StringVar(&dsn, "db", "", "SQLite DSN overriding database.dsn")
	cmd.Flags().StringVar(&disease, "disease", "", "Disease name as stored by a previous run")
	return cmd
}
