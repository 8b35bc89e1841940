package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/sshcheck/internal/config"
	"github.com/HerbHall/sshcheck/internal/export"
	"github.com/HerbHall/sshcheck/internal/publish"
	"github.com/HerbHall/sshcheck/internal/render"
	"github.com/HerbHall/sshcheck/internal/store"
	"github.com/HerbHall/sshcheck/pkg/models"
)

// exportRun writes every configured export. Each failure is logged and the
// remaining exports still run.
func exportRun(ctx context.Context, run *models.Run, s *config.Settings, g prometheus.Gatherer, logger *zap.Logger) error {
	var errs []error
	record := func(kind, dest string, err error) {
		if err != nil {
			logger.Error("export failed", zap.String("kind", kind), zap.String("dest", dest), zap.Error(err))
			errs = append(errs, err)
			return
		}
		logger.Info("exported results", zap.String("kind", kind), zap.String("dest", dest))
	}

	if path := s.Export.CSV; path != "" {
		if path == "auto" {
			path = export.DefaultFilename(run.FinishedAt)
		}
		record("csv", path, export.SaveCSV(path, run.Results))
	}
	if path := s.Export.Chart; path != "" {
		record("chart", path, saveChart(path, run.Results))
	}
	if path := s.Export.Metrics; path != "" {
		record("metrics", path, export.WriteMetrics(path, g))
	}
	if path := s.Export.SQLite; path != "" {
		record("sqlite", path, saveRun(ctx, path, run))
	}
	if brokers := s.Export.Kafka.Brokers; len(brokers) > 0 {
		record("kafka", s.Export.Kafka.Topic, publishRun(ctx, brokers, s.Export.Kafka.Topic, run, logger))
	}
	return errors.Join(errs...)
}

func saveChart(path string, results []models.CheckResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close chart %q: %w", path, cerr)
		}
	}()
	return export.WriteChart(f, results)
}

func openRunStore(ctx context.Context, path string) (*store.SQLiteStore, *store.RunStore, error) {
	db, err := store.New(path)
	if err != nil {
		return nil, nil, err
	}
	rs, err := store.NewRunStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, rs, nil
}

func saveRun(ctx context.Context, path string, run *models.Run) error {
	db, rs, err := openRunStore(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()
	return rs.SaveRun(ctx, run)
}

func publishRun(ctx context.Context, brokers []string, topic string, run *models.Run, logger *zap.Logger) error {
	p, err := publish.New(brokers, topic, logger)
	if err != nil {
		return err
	}
	if err := p.PublishRun(ctx, run); err != nil {
		p.Close()
		return err
	}
	return p.Close()
}

// showHistory prints stored runs instead of probing.
func showHistory(ctx context.Context, w io.Writer, opts *options, s *config.Settings, colored bool) error {
	if s.Export.SQLite == "" {
		return errors.New("-history and -show need a -sqlite database")
	}
	db, rs, err := openRunStore(ctx, s.Export.SQLite)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.show != "" {
		run, err := rs.GetRun(ctx, opts.show)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Run %s  started %s  took %s  port %d\n\n",
			run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Duration().Round(time.Millisecond), run.Config.Port)
		if err := render.Table(w, run.Results, colored); err != nil {
			return err
		}
		fmt.Fprintln(w)
		return render.Summary(w, run.Summary())
	}

	runs, err := rs.ListRuns(ctx, opts.history)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tPORT\tPARALLELISM")
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration().Round(time.Millisecond), r.Config.Port, r.Parallelism)
	}
	return tw.Flush()
}
