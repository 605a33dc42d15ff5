// cmd/sales-ingress/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/config"
	"github.com/David-Botos/sales-ingress/pkg/connector"
	"github.com/David-Botos/sales-ingress/pkg/logger"
	"github.com/David-Botos/sales-ingress/pkg/pipeline"
	"github.com/David-Botos/sales-ingress/pkg/sink"
	"github.com/David-Botos/sales-ingress/pkg/source"
)

func main() {
	envFile := flag.String("env", ".env", "Path to the environment file")
	csvPath := flag.String("csv", "", "Path to a CSV export (overrides SOURCE_CSV_PATH)")
	dryRun := flag.Bool("dry-run", false, "Clean and report without persisting")
	reportJSON := flag.String("report-json", "", "Write the quality report as JSON to this path")
	printReport := flag.Bool("print-report", true, "Print the human-readable quality report to stdout")
	flag.Parse()

	// Local development convenience; in production the environment is
	// already populated.
	if err := godotenv.Load(*envFile); err != nil && *envFile != ".env" {
		fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	if *csvPath != "" {
		os.Setenv("SOURCE_KIND", config.SourceCSV)
		os.Setenv("SOURCE_CSV_PATH", *csvPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if _, err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zap.L().Sync()

	if err := run(cfg, *dryRun, *reportJSON, *printReport); err != nil {
		zap.L().Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, dryRun bool, reportJSON string, printReport bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New()
	log := zap.L().Named("main")
	log.Info("Starting sales ingress",
		zap.String("runID", runID.String()),
		zap.String("sourceKind", cfg.SourceKind),
		zap.Bool("dryRun", dryRun))

	var (
		snowflake *connector.SnowflakeConnector
		postgres  *connector.PostgresConnector
		err       error
	)

	// A dry run of a CSV source needs no connections at all.
	needsPostgres := !dryRun
	needsSnowflake := cfg.SourceKind == config.SourceWarehouse

	if needsPostgres || needsSnowflake {
		factory := connector.NewConnectorFactory(cfg, zap.L().Named("connector-factory"))
		snowflake, postgres, err = factory.CreateForRun(ctx, needsPostgres)
		if err != nil {
			return fmt.Errorf("failed to create connectors: %w", err)
		}
		if snowflake != nil {
			defer snowflake.Close()
		}
		if postgres != nil {
			defer postgres.Close()
		}
	}

	src, err := buildSource(cfg, snowflake)
	if err != nil {
		return err
	}

	var dataSink sink.Sink
	var verifier *pipeline.Verifier
	if !dryRun {
		dataSink = sink.NewPostgresSink(postgres, cfg.Postgres.Schema, runID, cfg.TruncateBeforeLoad)
		verifier = pipeline.NewVerifier(postgres, cfg.Postgres.Schema, runID, cfg.VerifySampleSize)
	}

	manager := pipeline.NewManager(runID, src, dataSink, verifier, cfg).WithDryRun(dryRun)

	qualityReport, summary, err := manager.Run(ctx)
	if err != nil {
		return err
	}

	log.Info("Run succeeded",
		zap.Int64("rowsRead", summary.RowsRead),
		zap.Int64("rowsCleaned", summary.RowsCleaned),
		zap.Int64("rowsRejected", summary.RowsRejected),
		zap.Int64("rowsPersisted", summary.RowsPersisted),
		zap.Duration("duration", summary.Duration))

	if printReport {
		fmt.Println(qualityReport.HumanSummary())
	}

	if reportJSON != "" {
		data, err := qualityReport.ToJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportJSON, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", reportJSON, err)
		}
		log.Info("Wrote quality report", zap.String("path", reportJSON))
	}

	return nil
}

// buildSource constructs the record source for the configured run shape
func buildSource(cfg *config.Config, snowflake *connector.SnowflakeConnector) (source.RecordSource, error) {
	switch cfg.SourceKind {
	case config.SourceCSV:
		return source.NewCSVSource(cfg.CSVPath), nil
	case config.SourceWarehouse:
		if snowflake == nil {
			return nil, fmt.Errorf("warehouse source requires a Snowflake connection")
		}
		return source.NewWarehouseSource(
			snowflake,
			cfg.StagingSchema,
			cfg.StagingTable,
			cfg.LoadOrderColumn,
			cfg.ChunkSize,
		), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
	}
}
