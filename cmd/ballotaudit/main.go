package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ballotaudit/internal/config"
	apierrors "ballotaudit/internal/errors"
	"ballotaudit/internal/exporter"
	"ballotaudit/internal/infrastructure"
	"ballotaudit/internal/ingest"
	"ballotaudit/internal/middleware"
	"ballotaudit/internal/services"
	"ballotaudit/internal/validation"
	"ballotaudit/pkg/contracts"
	"ballotaudit/pkg/contracts/domain"
)

// errUsage marks errors caused by bad command line input.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "ballotaudit:", err)
		os.Exit(1)
	}
}

// options are the parsed flags. Pointers are nil when the flag was not given
// so config and policy file values survive.
type options struct {
	ConfigFile   string
	In           string
	Tab          string
	Sheet        string
	Range        string
	Credentials  string
	PolicyFile   string
	Out          string
	Salt         *string
	Focus        *string
	Timezone     *string
	JSON         bool
	ExcludedDays *string  `form:"excluded-days" validate:"omitnil,daylist"`
	MinGlobal    *float64 `form:"min-global" validate:"omitnil,gte=0"`
	MinChoice    *float64 `form:"min-choice" validate:"omitnil,gte=0"`
	NightStart   *int     `form:"night-start" validate:"omitnil,gte=0,lte=23"`
	NightEnd     *int     `form:"night-end" validate:"omitnil,gte=0,lte=23"`
	Z            *float64 `form:"z" validate:"omitnil,gt=0"`
	Scenario     string   `form:"scenario" validate:"omitempty,oneof=A B C"`
	Top          *int     `form:"top" validate:"omitnil,gte=1,lte=1000"`
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("ballotaudit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s\n\nUsage: ballotaudit (-in FILE | -sheet SPREADSHEET_ID) [flags]\n\n", contracts.GetVersionString())
		fs.PrintDefaults()
	}

	o := &options{}
	fs.StringVar(&o.ConfigFile, "config", "", "config file (defaults to config.yaml lookup)")
	fs.StringVar(&o.In, "in", "", "vote table to audit (.csv, .tsv or .xlsx)")
	fs.StringVar(&o.Tab, "tab", "", "worksheet of an .xlsx input (defaults to the first)")
	fs.StringVar(&o.Sheet, "sheet", "", "Google spreadsheet id to audit instead of -in")
	fs.StringVar(&o.Range, "range", "", "A1 range of the Google sheet (default from config)")
	fs.StringVar(&o.Credentials, "creds", "", "service account credentials file for -sheet")
	fs.StringVar(&o.PolicyFile, "policy", "", "YAML policy file merged over the defaults")
	fs.StringVar(&o.Out, "out", "", "output directory (default from config)")
	fs.BoolVar(&o.JSON, "json", false, "print the public report as JSON instead of a summary")
	fs.StringVar(&o.Scenario, "scenario", "", "headline scenario: A, B or C (default A)")

	excluded := fs.String("excluded-days", "", "comma separated days of month to drop, empty for none")
	minGlobal := fs.Float64("min-global", 0, "flag votes at most this many seconds after the previous one")
	minChoice := fs.Float64("min-choice", 0, "same as -min-global, within one choice")
	nightStart := fs.Int("night-start", 0, "first night hour (0-23)")
	nightEnd := fs.Int("night-end", 0, "last night hour (0-23), wraps when below -night-start")
	z := fs.Float64("z", 0, "robust z-score threshold for hourly outliers")
	top := fs.Int("top", 0, "choices kept in rankings")
	salt := fs.String("salt", "", "pseudonym salt for exported email hashes")
	focus := fs.String("focus", "", "choice to profile in the report")
	tz := fs.String("tz", "", "IANA zone of naive timestamps (default from config)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "excluded-days":
			o.ExcludedDays = excluded
		case "min-global":
			o.MinGlobal = minGlobal
		case "min-choice":
			o.MinChoice = minChoice
		case "night-start":
			o.NightStart = nightStart
		case "night-end":
			o.NightEnd = nightEnd
		case "z":
			o.Z = z
		case "top":
			o.Top = top
		case "salt":
			o.Salt = salt
		case "focus":
			o.Focus = focus
		case "tz":
			o.Timezone = tz
		}
	})
	o.Scenario = strings.ToUpper(strings.TrimSpace(o.Scenario))

	if o.In == "" && o.Sheet == "" {
		return nil, fmt.Errorf("%w: one of -in or -sheet is required", errUsage)
	}
	if o.In != "" && o.Sheet != "" {
		return nil, fmt.Errorf("%w: -in and -sheet are mutually exclusive", errUsage)
	}
	return o, nil
}

// validate checks flag ranges with the same rules as the HTTP form.
func (o *options) validate(logger *slog.Logger) error {
	err := middleware.NewValidator(logger).ValidateStruct(o)
	if err == nil {
		return nil
	}
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		if details, ok := apiErr.Details.(apierrors.ValidationErrors); ok {
			msgs := make([]string, 0, len(details.Errors))
			for _, fe := range details.Errors {
				msgs = append(msgs, "-"+fe.Message)
			}
			return fmt.Errorf("%w: %s", errUsage, strings.Join(msgs, "; "))
		}
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config, using defaults", slog.String("error", err.Error()))
		return config.Default(), nil
	}
	return cfg, nil
}

// policy layers the policy file and flag overrides over the defaults.
func (o *options) policy(cfg *config.Config) (config.AuditConfig, error) {
	if o.PolicyFile != "" {
		cfg.Audit.PolicyFile = o.PolicyFile
	}
	base, err := cfg.AuditPolicy()
	if err != nil {
		return base, apierrors.NewConfigError("failed to load policy file", err)
	}

	var opts []config.AuditOption
	if o.ExcludedDays != nil {
		opts = append(opts, config.WithExcludedDays(config.ParseExcludedDays(*o.ExcludedDays)...))
	}
	if o.MinGlobal != nil {
		opts = append(opts, config.WithMinGlobalDelta(*o.MinGlobal))
	}
	if o.MinChoice != nil {
		opts = append(opts, config.WithMinPerChoiceDelta(*o.MinChoice))
	}
	if o.NightStart != nil || o.NightEnd != nil {
		start, end := base.NightHours()
		if o.NightStart != nil {
			start = *o.NightStart
		}
		if o.NightEnd != nil {
			end = *o.NightEnd
		}
		opts = append(opts, config.WithNightHours(start, end))
	}
	if o.Z != nil {
		opts = append(opts, config.WithOutlierThreshold(*o.Z))
	}
	return base.With(opts...), nil
}

func (o *options) source(ctx context.Context, cfg *config.Config) (ingest.Source, error) {
	if o.In != "" {
		return &ingest.FileSource{Path: o.In, Sheet: o.Tab}, nil
	}
	creds := cfg.Sheets.CredentialsFile
	if o.Credentials != "" {
		creds = o.Credentials
	}
	readRange := cfg.Sheets.Range
	if o.Range != "" {
		readRange = o.Range
	}
	src, err := ingest.NewSheetsSource(ctx, creds, o.Sheet, readRange)
	if err != nil {
		return nil, apierrors.NewSourceError("failed to open sheet", err)
	}
	return src, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	bootLogger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := o.validate(bootLogger); err != nil {
		return err
	}

	cfg, err := loadConfig(o.ConfigFile, bootLogger)
	if err != nil {
		return err
	}

	// stdout carries the result; logs go to stderr.
	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	policy, err := o.policy(cfg)
	if err != nil {
		return err
	}

	if o.Timezone != nil {
		cfg.Audit.Location = *o.Timezone
	}
	loc, err := time.LoadLocation(cfg.Audit.Location)
	if err != nil {
		return fmt.Errorf("%w: unknown time zone %q", errUsage, cfg.Audit.Location)
	}

	if o.Salt != nil {
		cfg.Audit.PseudonymSalt = *o.Salt
	}
	if o.Out != "" {
		cfg.Paths.OutputDir = o.Out
	}
	paths, err := config.GetPaths("", cfg.Paths)
	if err != nil {
		return err
	}

	topN, focus := cfg.Audit.TopN, cfg.Audit.FocusChoice
	if o.Top != nil {
		topN = *o.Top
	}
	if o.Focus != nil {
		focus = *o.Focus
	}

	files := validation.NewFileValidator(logger)
	if o.In != "" {
		if err := files.ValidateVoteTable(o.In); err != nil {
			return apierrors.NewSourceError("invalid input", err)
		}
	}
	if err := files.ValidateOutputDirectory(paths.OutputDir); err != nil {
		return apierrors.NewStorageError("invalid output directory", err)
	}

	src, err := o.source(ctx, cfg)
	if err != nil {
		return err
	}

	pseudo := exporter.NewPseudonymizer(cfg.Audit.PseudonymSalt)
	svc := services.NewAuditService(pseudo, logger,
		services.WithExporter(exporter.NewExporter(paths, pseudo, logger)))

	res, err := svc.Run(ctx, services.AuditRequest{
		Source:      src,
		Policy:      policy,
		Location:    loc,
		Scenario:    domain.ScenarioID(o.Scenario),
		TopN:        topN,
		FocusChoice: focus,
	})
	if err != nil {
		return err
	}

	written, err := svc.Export(ctx, res)
	if err != nil {
		return err
	}

	if o.JSON {
		return exporter.EncodePublicReport(stdout, svc.PublicReport(res))
	}
	printSummary(stdout, res, written)
	return nil
}

func printSummary(w io.Writer, res *services.AuditResult, files []string) {
	a, rep := res.Artifacts, res.Insights

	fmt.Fprintf(w, "Audit %s of %s\n", res.ID, res.Source)
	fmt.Fprintf(w, "  rows: %d read, %d dropped (bad timestamp), %d cleaned\n",
		len(a.FlaggedRaw), a.DroppedRows, len(a.Cleaned))
	fmt.Fprintf(w, "  flags: global<=%gs %d, per-choice<=%gs %d, night %d, domain typo %d, suffix3 %d\n",
		res.Policy.MinGlobalDelta, a.Summary.GlobalShortDeltas,
		res.Policy.MinPerChoiceDelta, a.Summary.PerChoiceShortDeltas,
		a.Summary.NightVotes, a.Summary.SuspiciousDomains, a.Summary.SyntheticEmailSuffix3)

	for _, s := range rep.Scenarios {
		if s.Winner == "" {
			fmt.Fprintf(w, "  scenario %s: no votes\n", s.Label)
			continue
		}
		fmt.Fprintf(w, "  scenario %s: %s with %d of %d (%.1f%%)\n",
			s.Label, s.Winner, s.WinnerVotes, s.Total, s.WinnerShare*100)
	}

	fmt.Fprintln(w, "Written:")
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", filepath.Clean(f))
	}
}
