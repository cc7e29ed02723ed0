package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/kernlib/internal/app"
	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// options holds raw flag values before they are folded into a config.Build.
type options struct {
	configPath string
	arch       string
	noMerge    bool
	noTable    bool
	noCompress bool
	logFormat  string
	logLevel   string
	b          config.Build
}

const longHelp = `kernlib merges kernel logic files into a runtime library, generates kernel
sources, compiles them into code objects and writes library metadata.

Arguments:
  LOGIC_PATH   Directory searched recursively for logic files.
  OUTPUT_PATH  Directory receiving sources, code objects and metadata.

Values are resolved in order: built-in defaults, the --config file, flags,
then positional arguments.`

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	o := &options{b: config.Defaults()}

	var cfg *app.Config
	cmd := &cobra.Command{
		Use:           "kernlib [flags] [LOGIC_PATH] [OUTPUT_PATH]",
		Short:         "Build a GPU kernel library from logic files.",
		Long:          longHelp,
		Args:          cobra.MaximumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.resolve(cmd.Flags(), args)
			if err != nil {
				return err
			}
			if b.LogicPath == "" && b.OutputPath == "" {
				slog.Debug("No paths provided, printing usage and exiting.")
				return cmd.Usage()
			}
			cfg, err = app.NewConfig(app.Config{
				Build:     b,
				LogFormat: strings.ToLower(o.logFormat),
				LogLevel:  strings.ToLower(o.logLevel),
			})
			return err
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)
	o.register(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if cfg == nil {
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "logic", cfg.Build.LogicPath, "output", cfg.Build.OutputPath)
	return cfg, false, nil
}

func (o *options) register(fs *pflag.FlagSet) {
	d := o.b
	fs.SortFlags = false
	fs.StringVar(&o.configPath, "config", "", "HCL file with a build block; flags override its values.")
	fs.StringVarP(&o.arch, "architecture", "a", strings.Join(d.Architectures, ";"), "Target architectures separated by ';' or '_', or 'all'.")
	fs.BoolVar(&o.b.MergeFiles, "merge-files", d.MergeFiles, "Merge generated kernel sources into shared files.")
	fs.BoolVar(&o.noMerge, "no-merge-files", false, "Write one source file per kernel.")
	fs.IntVar(&o.b.NumMergedFiles, "num-merged-files", d.NumMergedFiles, "Number of merged source files.")
	fs.BoolVar(&o.b.SeparateArchitectures, "separate-architectures", d.SeparateArchitectures, "Write one library per architecture.")
	fs.BoolVar(&o.b.LazyLibraryLoading, "lazy-library-loading", d.LazyLibraryLoading, "Split each architecture library into lazily loaded code objects.")
	fs.BoolVar(&o.b.ErrorTolerant, "error-tolerant", d.ErrorTolerant, "Drop solutions whose kernels fail instead of aborting.")
	fs.BoolVar(&o.b.ValidateLibrary, "validate-library", d.ValidateLibrary, "Check lazy library kernel counts after compilation.")
	fs.BoolVar(&o.b.GenerateSourcesAndExit, "generate-sources-and-exit", d.GenerateSourcesAndExit, "Write sources and metadata without compiling.")
	fs.BoolVar(&o.b.GenerateManifestAndExit, "generate-manifest-and-exit", d.GenerateManifestAndExit, "Write the output manifest and stop.")
	fs.BoolVar(&o.noTable, "no-generate-solution-table", false, "Do not write the solution match table.")
	fs.StringVar(&o.b.LogicFormat, "logic-format", d.LogicFormat, "Logic file format: 'yaml' or 'json'.")
	fs.StringVar(&o.b.LibraryFormat, "library-format", d.LibraryFormat, "Library metadata format: 'yaml' or 'msgpack'.")
	fs.StringVar(&o.b.LogicFilter, "logic-filter", d.LogicFilter, "Glob selecting logic files relative to LOGIC_PATH.")
	fs.BoolVar(&o.b.Experimental, "experimental", d.Experimental, "Include logic files below experimental directories.")
	fs.IntVarP(&o.b.Jobs, "jobs", "j", d.Jobs, "Concurrent workers; zero or negative uses every CPU.")
	fs.BoolVar(&o.b.KeepBuildTmp, "keep-build-tmp", d.KeepBuildTmp, "Keep the temporary build directory.")
	fs.StringVar(&o.b.Version, "version", d.Version, "Override the library version written to metadata.")
	fs.StringVar(&o.b.CxxCompiler, "cxx-compiler", d.CxxCompiler, "Compiler used for sources and code objects.")
	fs.BoolVar(&o.noCompress, "no-compress", false, "Do not compress offload bundles.")
	fs.BoolVar(&o.b.StableSolutionOrder, "stable-solution-order", d.StableSolutionOrder, "Merge logic files in path order instead of arrival order.")
	fs.StringVar(&o.b.ProgressURL, "progress-url", d.ProgressURL, "Socket.IO endpoint receiving build progress events.")
	fs.StringVar(&o.b.LibraryPrefix, "library-prefix", d.LibraryPrefix, "Name prefix of metadata files and merged code objects.")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&o.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
}

// resolve layers the config file, changed flags and positional arguments
// over the defaults.
func (o *options) resolve(fs *pflag.FlagSet, args []string) (config.Build, error) {
	b := config.Defaults()
	if o.configPath != "" {
		ctx := ctxlog.WithLogger(context.Background(), slog.Default())
		if err := config.LoadFile(ctx, o.configPath, &b); err != nil {
			return b, err
		}
	}

	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		if err := o.apply(&b, f.Name); err != nil {
			errs = append(errs, err)
		}
	})
	if err := errors.Join(errs...); err != nil {
		return b, err
	}

	if len(args) > 0 {
		b.LogicPath = args[0]
	}
	if len(args) > 1 {
		b.OutputPath = args[1]
	}
	return b, nil
}

// apply copies the value of one explicitly set flag onto b.
func (o *options) apply(b *config.Build, name string) error {
	switch name {
	case "architecture":
		b.Architectures = arch.Split(o.arch)
		if len(b.Architectures) == 0 {
			return errors.New("--architecture must name at least one architecture")
		}
	case "merge-files":
		b.MergeFiles = o.b.MergeFiles
	case "no-merge-files":
		b.MergeFiles = !o.noMerge
	case "num-merged-files":
		b.NumMergedFiles = o.b.NumMergedFiles
	case "separate-architectures":
		b.SeparateArchitectures = o.b.SeparateArchitectures
	case "lazy-library-loading":
		b.LazyLibraryLoading = o.b.LazyLibraryLoading
	case "error-tolerant":
		b.ErrorTolerant = o.b.ErrorTolerant
	case "validate-library":
		b.ValidateLibrary = o.b.ValidateLibrary
	case "generate-sources-and-exit":
		b.GenerateSourcesAndExit = o.b.GenerateSourcesAndExit
	case "generate-manifest-and-exit":
		b.GenerateManifestAndExit = o.b.GenerateManifestAndExit
	case "no-generate-solution-table":
		b.GenerateSolutionTable = !o.noTable
	case "logic-format":
		b.LogicFormat = strings.ToLower(o.b.LogicFormat)
	case "library-format":
		b.LibraryFormat = strings.ToLower(o.b.LibraryFormat)
	case "logic-filter":
		b.LogicFilter = o.b.LogicFilter
	case "experimental":
		b.Experimental = o.b.Experimental
	case "jobs":
		b.Jobs = o.b.Jobs
	case "keep-build-tmp":
		b.KeepBuildTmp = o.b.KeepBuildTmp
	case "version":
		b.Version = o.b.Version
	case "cxx-compiler":
		b.CxxCompiler = o.b.CxxCompiler
	case "no-compress":
		b.Compress = !o.noCompress
	case "stable-solution-order":
		b.StableSolutionOrder = o.b.StableSolutionOrder
	case "progress-url":
		b.ProgressURL = o.b.ProgressURL
	case "library-prefix":
		b.LibraryPrefix = o.b.LibraryPrefix
	}
	return nil
}
