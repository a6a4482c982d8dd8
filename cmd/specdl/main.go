package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ztrue/tracerr"

	"github.com/udbhav-44/3GPP-downloader/internal/config"
	"github.com/udbhav-44/3GPP-downloader/internal/convert"
	"github.com/udbhav-44/3GPP-downloader/internal/downloader"
	"github.com/udbhav-44/3GPP-downloader/internal/filter"
	"github.com/udbhav-44/3GPP-downloader/internal/logging"
	"github.com/udbhav-44/3GPP-downloader/internal/remote"
)

func main() {
	cli := newCLI()
	if err := cli.root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, tracerr.Sprint(err))
		os.Exit(exitCode(cli.started, err))
	}
}

func exitCode(started bool, err error) int {
	if !started || errors.Is(err, filter.ErrUsage) || errors.Is(err, filter.ErrMalformedDocument) {
		return 2
	}
	return 1
}

type cli struct {
	root    *cobra.Command
	started bool

	configPath string
	in         filter.Input
	file       config.Config
	noProgress bool
}

func newCLI() *cli {
	c := &cli{}
	c.root = &cobra.Command{
		Use:   "specdl",
		Short: "Downloads 3GPP specs. If no version parameter is given all versions are downloaded.",
		Args:  cobra.NoArgs,
		// Flag group and parse errors are printed by main.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.started = true
			return c.run(cmd)
		},
	}

	flags := c.root.Flags()
	flags.StringVarP(&c.in.Documents, "document", "d", "", "comma separated list of documents to download with format <series>.<document_number> e.g. 33.117")
	flags.StringVarP(&c.in.Series, "series", "s", "", "comma separated list of numbers representing a 3GPP spec series")
	flags.StringVarP(&c.in.ListFile, "list", "l", "", "textfile including document list (line based) - document format e.g. 33.117")
	flags.StringVarP(&c.in.MajorVersions, "major-version", "v", "", "comma separated list of numbers or characters representing 3GPP spec major version(s)")
	flags.BoolVarP(&c.in.Extract, "extract", "e", false, "extracts the downloaded zip archives")
	flags.BoolVar(&c.in.PDF, "pdf", false, "tries to convert doc files to pdf")
	flags.BoolVar(&c.in.Latest, "latest", false, "only latest (or latest major version if given) document version is downloaded")
	flags.BoolVar(&c.in.Purge, "purge", false, "delete all byproducts of result e.g. delete zip file after extracting")
	c.root.MarkFlagsMutuallyExclusive("document", "series", "list")
	c.root.MarkFlagsOneRequired("document", "series", "list")

	def := config.Default()
	flags.StringVar(&c.configPath, "config", "", "path to a TOML or YAML configuration file")
	flags.StringVarP(&c.file.OutputDir, "output-dir", "o", def.OutputDir, "directory to download files to")
	flags.StringVar(&c.file.Host, "host", def.Host, "FTP server host")
	flags.StringVar(&c.file.Port, "port", def.Port, "FTP server port")
	flags.StringVar(&c.file.BasePath, "base-path", def.BasePath, "archive root on the FTP server")
	flags.StringVar(&c.file.TLS, "tls", def.TLS, "TLS mode: none|explicit|implicit")
	flags.BoolVar(&c.file.InsecureSkipVerify, "insecure-skip-verify", false, "skip TLS certificate verification")
	flags.IntVar(&c.file.TimeoutSeconds, "timeout", def.TimeoutSeconds, "FTP dial timeout in seconds")
	flags.BoolVar(&c.file.DebugFTP, "debug-ftp", false, "write the FTP conversation to the log")
	flags.StringVar(&c.file.LogDir, "log-dir", "", "write logs to a daily file in this directory instead of stdout")
	flags.StringVar(&c.file.Converter, "converter", def.Converter, "office suite binary used for --pdf")
	flags.StringVar(&c.file.ListEncoding, "list-encoding", "", "encoding of the --list file (default UTF-8, byte order marks honored)")
	flags.BoolVar(&c.noProgress, "no-progress", false, "do not draw download progress bars")
	return c
}

// settings loads the configuration file and applies the flags that were
// set explicitly on the command line.
func (c *cli) settings(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"output-dir":           func() { cfg.OutputDir = c.file.OutputDir },
		"host":                 func() { cfg.Host = c.file.Host },
		"port":                 func() { cfg.Port = c.file.Port },
		"base-path":            func() { cfg.BasePath = c.file.BasePath },
		"tls":                  func() { cfg.TLS = c.file.TLS },
		"insecure-skip-verify": func() { cfg.InsecureSkipVerify = c.file.InsecureSkipVerify },
		"timeout":              func() { cfg.TimeoutSeconds = c.file.TimeoutSeconds },
		"debug-ftp":            func() { cfg.DebugFTP = c.file.DebugFTP },
		"log-dir":              func() { cfg.LogDir = c.file.LogDir },
		"converter":            func() { cfg.Converter = c.file.Converter },
		"list-encoding":        func() { cfg.ListEncoding = c.file.ListEncoding },
		"no-progress":          func() { cfg.Progress = !c.noProgress },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) run(cmd *cobra.Command) error {
	cfg, err := c.settings(cmd.Flags())
	if err != nil {
		return err
	}

	in := c.in
	in.OutputDir = cfg.OutputDir
	in.ListEncoding = cfg.ListEncoding
	req, err := filter.Resolve(in)
	if err != nil {
		return err
	}

	sink, err := logging.Open(cfg.LogDir, cmd.OutOrStdout(), time.Now())
	if err != nil {
		return err
	}
	defer sink.Close()
	logger := sink.Logger

	opts := remote.Options{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Pass:               cfg.Pass,
		BasePath:           cfg.BasePath,
		TLS:                cfg.TLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.Timeout(),
	}
	if cfg.DebugFTP {
		opts.Debug = sink.Writer
	}
	dial := func(ctx context.Context) (remote.Session, error) {
		client, err := remote.Dial(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	var progress io.Writer
	if cfg.Progress {
		progress = cmd.ErrOrStderr()
	}

	d := downloader.New(dial, convert.NewSoffice(cfg.Converter, sink.Writer, sink.Writer), downloader.Options{
		DocMarker: cfg.DocMarker,
		Progress:  progress,
	}, logger)

	_, err = d.Run(context.Background(), req)
	return err
}
