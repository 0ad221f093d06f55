package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/inodb/gt2plink/internal/blob"
	"github.com/inodb/gt2plink/internal/blob/gcs"
	blobs3 "github.com/inodb/gt2plink/internal/blob/s3"
	"github.com/inodb/gt2plink/internal/convert"
	"github.com/inodb/gt2plink/internal/duckdb"
	"github.com/inodb/gt2plink/internal/plink"
)

func runConvert(cmd *cobra.Command, inputPath, prefix string) error {
	if inputPath != "-" {
		if _, err := os.Stat(inputPath); err != nil {
			return usageErrorf("input file %s not found", inputPath)
		}
	}

	sample, err := sampleFromConfig(inputPath)
	if err != nil {
		return &usageError{err: err}
	}
	if err := sample.Validate(); err != nil {
		return &usageError{err: err}
	}

	var target *blob.Target
	if raw := viper.GetString("upload.url"); raw != "" {
		t, err := blob.ParseTarget(raw)
		if err != nil {
			return &usageError{err: err}
		}
		target = &t
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := newLogger(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	defer logger.Sync() //nolint:errcheck

	var store *duckdb.Store
	if path := viper.GetString("manifest.path"); path != "" {
		var err error
		store, err = duckdb.Open(path)
		if err != nil {
			return fmt.Errorf("opening manifest: %w", err)
		}
		defer store.Close()
	}

	absPrefix, err := filepath.Abs(prefix)
	if err != nil {
		return fmt.Errorf("resolving output prefix: %w", err)
	}

	var input duckdb.FileFingerprint
	if inputPath == "-" {
		input.Path = "-"
	} else {
		if input, err = duckdb.StatFile(inputPath); err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		if store != nil {
			prev, err := store.FindRun(input, absPrefix)
			if err != nil {
				return fmt.Errorf("checking manifest: %w", err)
			}
			if prev != nil {
				logger.Info("input already converted to this prefix, overwriting",
					zap.Int64("run", prev.ID),
					zap.Time("converted_at", prev.ConvertedAt))
			}
		}
	}

	conv := convert.New(convert.Options{
		Sample:                sample,
		PermissiveChromosomes: viper.GetBool("chromosomes.permissive"),
		SNPsOnly:              viper.GetBool("filter.snps_only"),
	})
	conv.SetLogger(logger)

	res, err := conv.ConvertFile(ctx, inputPath, prefix)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)

	if store != nil {
		run := newRun(input, absPrefix, sample.IndividualID, &res.Stats)
		if _, err := store.RecordRun(run); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		logger.Debug("recorded run", zap.Int64("run", run.ID))
	}

	if path := viper.GetString("metrics.file"); path != "" {
		if err := conv.Metrics().WriteTextfile(path); err != nil {
			return err
		}
	}

	if target != nil {
		if err := uploadFileset(ctx, logger, *target, res.Fileset); err != nil {
			return err
		}
	}

	return nil
}

// sampleFromConfig builds the .fam record from flags, config and env.
func sampleFromConfig(inputPath string) (plink.Sample, error) {
	id := viper.GetString("sample.individual_id")
	if id == "" {
		id = convert.SampleID(inputPath)
	}
	s := plink.DefaultSample(id)
	if fid := viper.GetString("sample.family_id"); fid != "" {
		s.FamilyID = fid
	}
	s.PaternalID = viper.GetString("sample.paternal_id")
	s.MaternalID = viper.GetString("sample.maternal_id")
	sex, err := cast.ToIntE(viper.Get("sample.sex"))
	if err != nil {
		return s, fmt.Errorf("invalid sex %q: %w", viper.GetString("sample.sex"), err)
	}
	s.Sex = sex
	s.Phenotype = viper.GetString("sample.phenotype")
	return s, nil
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

func newRun(input duckdb.FileFingerprint, prefix, sampleID string, stats *convert.Stats) *duckdb.Run {
	chroms := make(map[int]int64, len(stats.Chromosomes))
	for c, n := range stats.Chromosomes {
		chroms[c] = int64(n)
	}
	return &duckdb.Run{
		Input:        input,
		Prefix:       prefix,
		SampleID:     sampleID,
		LinesRead:    int64(stats.LinesRead),
		Variants:     int64(stats.Retained),
		Dropped:      int64(stats.DroppedTotal()),
		MissingCalls: int64(stats.Codes[plink.Missing]),
		HetCalls:     int64(stats.Codes[plink.Het]),
		Duration:     stats.Duration,
		Chromosomes:  chroms,
	}
}

func printSummary(w io.Writer, res *convert.Result) {
	p := message.NewPrinter(language.English)
	fs := res.Fileset
	fmt.Fprintln(w, "Created binary PLINK files:")
	fmt.Fprintf(w, "  %s (family information)\n", fs.FAM())
	fmt.Fprintf(w, "  %s (variant information)\n", fs.BIM())
	fmt.Fprintf(w, "  %s (binary genotype data)\n", fs.BED())
	p.Fprintf(w, "Total SNPs: %d\n", res.Stats.Retained)
}

func openUploader(ctx context.Context, t blob.Target) (blob.Uploader, error) {
	switch t.Scheme {
	case blob.SchemeS3:
		return blobs3.New(ctx, blobs3.Config{
			Bucket:    t.Bucket,
			Region:    viper.GetString("upload.region"),
			Endpoint:  viper.GetString("upload.endpoint"),
			PathStyle: viper.GetBool("upload.path_style"),
		})
	case blob.SchemeGCS:
		return gcs.New(ctx, t.Bucket)
	}
	return nil, fmt.Errorf("unsupported upload scheme %q", t.Scheme)
}

func uploadFileset(ctx context.Context, logger *zap.Logger, t blob.Target, fs plink.Fileset) error {
	u, err := openUploader(ctx, t)
	if err != nil {
		return fmt.Errorf("opening upload target: %w", err)
	}
	defer u.Close()

	urls, err := blob.UploadFiles(ctx, u, t, fs.Files())
	if err != nil {
		return err
	}
	for _, url := range urls {
		logger.Info("uploaded", zap.String("url", url))
	}
	return nil
}
