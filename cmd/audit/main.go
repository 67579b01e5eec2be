package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	appsnapshots "github.com/bryanwahyu/analysis-vault/internal/application/snapshots"
	"github.com/bryanwahyu/analysis-vault/internal/config"
	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
	minioStore "github.com/bryanwahyu/analysis-vault/internal/infra/storage"
)

// analysis-audit is the offline companion to the API server: it moves store
// state between backends, files and the archive bucket, and verifies state
// dumps before anyone imports them.
func main() {
	app := &cli.App{
		Name:  "analysis-audit",
		Usage: "export, import, verify and migrate analysis store state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "export store state to a JSON file or the archive bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Usage: "override configured storage backend"},
					&cli.StringFlag{Name: "out", Usage: "output file path (default: stdout)"},
					&cli.StringFlag{Name: "key", Usage: "archive object key; uploads instead of writing a file"},
				},
				Action: runExport,
			},
			{
				Name:  "import",
				Usage: "import store state from a JSON file or the archive bucket",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Usage: "override configured storage backend"},
					&cli.StringFlag{Name: "file", Usage: "state JSON file to import"},
					&cli.StringFlag{Name: "key", Usage: "archive object key to restore from"},
				},
				Action: runImport,
			},
			{
				Name:      "verify",
				Usage:     "validate a state JSON file without touching any store",
				ArgsUsage: "<state.json>",
				Action:    runVerify,
			},
			{
				Name:  "migrate",
				Usage: "copy all state from one backend into another",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true, Usage: "source backend (memory|sqlite|mysql|postgres)"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "destination backend (memory|sqlite|mysql|postgres)"},
				},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context, backendOverride string) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	if backendOverride != "" {
		cfg.Storage.Backend = backendOverride
	}
	return cfg, nil
}

func openArchive(ctx context.Context, cfg *config.Config) (domain.StateArchive, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, fmt.Errorf("minio is not configured; set minio.endpoint in config")
	}
	return minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
}

func runExport(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c, c.String("backend"))
	if err != nil {
		return err
	}

	repo, err := appsnapshots.OpenRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if key := c.String("key"); key != "" {
		archive, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		svc := appsnapshots.NewService(repo, archive)
		storedKey, url, err := svc.BackupState(ctx, key)
		if err != nil {
			return err
		}
		fmt.Printf("state archived as %s (%s)\n", storedKey, url)
		return nil
	}

	state, err := repo.ExportState(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("exported %d analyses to %s\n", len(state.Analysis), out)
		return nil
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runImport(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c, c.String("backend"))
	if err != nil {
		return err
	}

	repo, err := appsnapshots.OpenRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if key := c.String("key"); key != "" {
		archive, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		svc := appsnapshots.NewService(repo, archive)
		if err := svc.RestoreState(ctx, key); err != nil {
			return err
		}
		fmt.Printf("state restored from archive key %s\n", key)
		return nil
	}

	file := c.String("file")
	if file == "" {
		return fmt.Errorf("either --file or --key is required")
	}
	state, err := readStateFile(file)
	if err != nil {
		return err
	}
	if err := repo.ImportState(ctx, state); err != nil {
		return err
	}
	fmt.Printf("imported %d analyses from %s\n", len(state.Analysis), file)
	return nil
}

func runVerify(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: analysis-audit verify <state.json>")
	}
	state, err := readStateFile(c.Args().First())
	if err != nil {
		return err
	}
	if err := domain.ValidateState(state); err != nil {
		return err
	}

	items := 0
	for _, a := range state.Analysis {
		items += len(a.Items)
	}
	fmt.Printf("state OK: %d analyses, %d items, next_analysis_id=%d, next_item_id=%d\n",
		len(state.Analysis), items, state.NextAnalysisID, state.NextItemID)
	return nil
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context
	from, to := c.String("from"), c.String("to")
	if from == to {
		return fmt.Errorf("source and destination backends are both %q", from)
	}

	srcCfg, err := loadConfig(c, from)
	if err != nil {
		return err
	}
	dstCfg, err := loadConfig(c, to)
	if err != nil {
		return err
	}

	src, err := appsnapshots.OpenRepository(ctx, srcCfg)
	if err != nil {
		return fmt.Errorf("open source backend: %w", err)
	}
	defer src.Close()

	dst, err := appsnapshots.OpenRepository(ctx, dstCfg)
	if err != nil {
		return fmt.Errorf("open destination backend: %w", err)
	}
	defer dst.Close()

	state, err := src.ExportState(ctx)
	if err != nil {
		return err
	}
	if err := dst.ImportState(ctx, state); err != nil {
		return err
	}
	fmt.Printf("migrated %d analyses from %s to %s\n", len(state.Analysis), from, to)
	return nil
}

func readStateFile(path string) (*domain.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
	return &state, nil
}
