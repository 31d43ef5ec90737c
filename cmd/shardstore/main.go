// Command shardstore manages a store of server issues kept as one batch
// file per source file path.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kjk/shardstore/issue"
	"github.com/kjk/shardstore/log"
	"github.com/kjk/shardstore/store"

	"github.com/spf13/cobra"
)

type app struct {
	cfg      *Config
	compress bool
	verbose  bool
	store    *store.Store[issue.Issue]
}

func (a *app) openStore() error {
	if a.cfg.Dir == "" {
		return fmt.Errorf("store directory is not set: use --dir or SHARDSTORE_DIR")
	}
	s, err := issue.NewStore(a.cfg.Dir, &store.Options{Compress: a.compress})
	if err != nil {
		return err
	}
	a.store = s
	return nil
}

func newRootCmd(cfg *Config) *cobra.Command {
	a := &app{cfg: cfg}
	rootCmd := &cobra.Command{
		Use:   "shardstore",
		Short: "shardstore - a file store of server issues",
		Long: `shardstore keeps issues reported by the server in a directory tree,
one batch file per source file path.

A path is hashed with SHA-1 and its batch is stored at
<dir>/<d[0]>/<d[1]>/<d>, d being the hex digest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Out = cmd.ErrOrStderr()
			log.Verbose = a.verbose
			log.Init(&log.Config{
				Dir:    a.cfg.LogDir,
				Server: a.cfg.LogServer,
				ApiKey: a.cfg.LogApiKey,
			})
			return a.openStore()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Close()
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfg.Dir, "dir", a.cfg.Dir, "root directory of the store (env SHARDSTORE_DIR)")
	flags.BoolVar(&a.compress, "compress", false, "compress saved batches with zstd")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		a.pathCmd(),
		a.saveCmd(),
		a.loadCmd(),
		a.deleteCmd(),
		a.importCmd(),
		a.exportCmd(),
		a.pushCmd(),
		a.pullCmd(),
		a.shellCmd(),
	)
	return rootCmd
}

func main() {
	cfg, err := LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = newRootCmd(cfg).ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails
	log.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
