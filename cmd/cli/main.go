package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/prioridades-pago/internal/app"
	"github.com/dvloznov/prioridades-pago/internal/areas"
	"github.com/dvloznov/prioridades-pago/internal/config"
	"github.com/dvloznov/prioridades-pago/internal/gcsuploader"
	"github.com/dvloznov/prioridades-pago/internal/logger"
	"github.com/dvloznov/prioridades-pago/internal/pipeline"
	"github.com/dvloznov/prioridades-pago/internal/rates"
)

var (
	envFile string
	store   bool

	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "prioridades-pago",
		Short:        "Process payment priority workbooks from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(envFile); err != nil {
				return err
			}
			c, err := config.Load()
			if err != nil {
				return err
			}
			cfg = c
			log = logger.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "Optional .env file")
	root.PersistentFlags().BoolVar(&store, "store", false, "Upload artifacts to GCS and load Paso 2 into BigQuery")

	root.AddCommand(paso1Cmd(), paso2Cmd(), ratesCmd(), areasCmd())
	return root
}

func paso1Cmd() *cobra.Command {
	var in, out, sheet string
	cmd := &cobra.Command{
		Use:   "paso1",
		Short: "Clean a raw workbook and derive the calculated columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)
			a, err := app.New(ctx, cfg, log, app.Options{Offline: !store})
			if err != nil {
				return err
			}
			defer a.Close()

			up, err := readUpload(in, sheet)
			if err != nil {
				return err
			}
			res, err := a.Service.Paso1(ctx, up)
			if err != nil {
				return err
			}
			if out == "" {
				out = res.FileName
			}
			if err := os.WriteFile(out, res.Output, 0o644); err != nil {
				return fmt.Errorf("paso1: write output: %w", err)
			}
			log.Info().Str("out", out).Str("gcs_path", res.StoragePath).Msg(res.Message)
			return printJSON(res.Stats)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Raw workbook (.xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to the generated file name)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the first sheet)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func paso2Cmd() *cobra.Command {
	var in, out, sheet, template string
	cmd := &cobra.Command{
		Use:   "paso2",
		Short: "Merge a workbook into the template and load it into the warehouse",
		Long: `paso2 accepts a raw or a Paso 1 workbook and merges it into the Detalle
sheet of the template. The template is read from --template, which may be a
local path or a gs:// URI; without it the configured template object is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)
			a, err := app.New(ctx, cfg, log, app.Options{Offline: !store})
			if err != nil {
				return err
			}
			defer a.Close()

			up, err := readUpload(in, sheet)
			if err != nil {
				return err
			}

			var res *pipeline.Paso2Result
			if template == "" {
				res, err = a.Service.Paso2(ctx, up)
			} else {
				var tpl []byte
				if tpl, err = readTemplate(ctx, template); err != nil {
					return err
				}
				res, err = a.Service.Paso2WithTemplate(ctx, up, tpl)
			}
			if err != nil {
				return err
			}

			if out == "" {
				out = res.FileName
			}
			if err := os.WriteFile(out, res.Output, 0o644); err != nil {
				return fmt.Errorf("paso2: write output: %w", err)
			}
			ev := log.Info()
			if res.Partial() {
				ev = log.Warn().Str("bigquery_error", res.Warehouse.Error)
			}
			ev.Str("out", out).Bool("reused", res.Reused).Int("rows_loaded", res.Warehouse.Rows).Msg(res.Message)
			return printJSON(res.Stats)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Raw or processed workbook (.xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to the generated file name)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (defaults to the first sheet)")
	cmd.Flags().StringVar(&template, "template", "", "Template workbook: local path or gs://bucket/object")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Fetch the exchange rates a batch would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)
			a, err := app.New(ctx, cfg, log, app.Options{Offline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			snap := rates.Snapshot(ctx, a.Rates, cfg.Rates.Timeout)
			return printJSON(snap)
		},
	}
}

func areasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "areas",
		Short: "Print the area table from the configured sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logger.WithContext(cmd.Context(), log)
			if !cfg.HasAreas() {
				return fmt.Errorf("areas: GOOGLE_SHEET_ID is not set")
			}
			loader, err := areas.NewSheetsLoader(ctx, cfg.Areas.SheetID, cfg.Areas.SheetName)
			if err != nil {
				return err
			}
			table, err := loader.Load(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("codes", table.Len()).Msg("Area table loaded")
			return printJSON(map[string]interface{}{
				"header": table.Header,
				"rows":   table.Rows,
			})
		},
	}
}

func readUpload(path, sheet string) (pipeline.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("readUpload: %w", err)
	}
	return pipeline.Upload{FileName: filepath.Base(path), Data: data, Sheet: sheet}, nil
}

func readTemplate(ctx context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "gs://") {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("readTemplate: %w", err)
		}
		return data, nil
	}

	bucket, _, err := gcsuploader.ParseGCSURI(ref)
	if err != nil {
		return nil, err
	}
	st, err := gcsuploader.NewGCSStorageService(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("readTemplate: %w", err)
	}
	defer st.Close()
	return st.FetchFromGCS(ctx, ref)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
