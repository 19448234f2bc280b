// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Qix-/starfuse/cmd/starpak/mount"
	"github.com/Qix-/starfuse/lib/btreedb4"
	"github.com/Qix-/starfuse/lib/vfs"
)

// logLevelFlag adapts logrus.Level to pflag.Value.
type logLevelFlag struct {
	logrus.Level
}

func (l *logLevelFlag) Type() string   { return "loglevel" }
func (l *logLevelFlag) String() string { return l.Level.String() }
func (l *logLevelFlag) Set(str string) error {
	var err error
	l.Level, err = logrus.ParseLevel(str)
	return err
}

var _ pflag.Value = (*logLevelFlag)(nil)

func main() {
	logLevel := logLevelFlag{Level: logrus.InfoLevel}
	var repair bool
	var cacheBlocks int
	var pages int

	root := &cobra.Command{
		Use:   "starpak",
		Short: "Read and mount StarBound .pak asset packages",

		SilenceErrors: true,
		SilenceUsage:  true,

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().Var(&logLevel, "verbosity", "set the log verbosity (trace|debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&repair, "repair", false, "reinterpret a broken leaf chain's free blocks as leaves instead of failing")
	root.PersistentFlags().IntVar(&cacheBlocks, "cache-blocks", 256, "parsed-block ARC cache capacity; 0 disables it")
	root.PersistentFlags().IntVar(&pages, "pages", 0, "map this many pages at a time (0 selects the built-in default)")

	// withPackage wraps a subcommand body with logging/signal-handling
	// setup and opens args[0] as a package before handing off the rest
	// of the arguments.
	withPackage := func(runE func(ctx context.Context, fsys *vfs.FS, pkgPath string, rest []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logrus.New()
			logger.SetLevel(logLevel.Level)
			ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logger))

			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
				EnableSignalHandling: true,
			})
			grp.Go("main", func(ctx context.Context) (err error) {
				fsys, err := vfs.Open(args[0], btreedb4.Config{
					PageMultiplier: pages,
					ReadOnly:       true,
					Repair:         repair,
					BlockCacheSize: cacheBlocks,
				})
				if err != nil {
					return err
				}
				defer func() {
					if cerr := fsys.Close(); err == nil {
						err = cerr
					}
				}()
				return runE(ctx, fsys, args[0], args[1:])
			})
			return grp.Wait()
		}
	}

	mountCmd := &cobra.Command{
		Use:   "mount PACKAGE MOUNTPOINT",
		Short: "Mount a package as a read-only FUSE filesystem",
		Args:  cobra.ExactArgs(2),
	}
	mountCmd.RunE = withPackage(func(ctx context.Context, fsys *vfs.FS, pkgPath string, rest []string) error {
		return mount.Run(ctx, fsys, pkgPath, rest[0])
	})
	root.AddCommand(mountCmd)

	statCmd := &cobra.Command{
		Use:   "stat PACKAGE PATH",
		Short: "Print whether PATH is a file or directory, and its size",
		Args:  cobra.ExactArgs(2),
	}
	statCmd.RunE = withPackage(func(_ context.Context, fsys *vfs.FS, _ string, rest []string) error {
		info, err := fsys.Stat(rest[0])
		if err != nil {
			return err
		}
		if info.IsDir {
			fmt.Printf("%s: directory\n", rest[0])
		} else {
			fmt.Printf("%s: file, %d bytes\n", rest[0], info.Size)
		}
		return nil
	})
	root.AddCommand(statCmd)

	lsCmd := &cobra.Command{
		Use:   "ls PACKAGE PATH",
		Short: "List PATH's directory entries",
		Args:  cobra.ExactArgs(2),
	}
	lsCmd.RunE = withPackage(func(_ context.Context, fsys *vfs.FS, _ string, rest []string) error {
		names, err := fsys.ReadDir(rest[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	})
	root.AddCommand(lsCmd)

	catCmd := &cobra.Command{
		Use:   "cat PACKAGE PATH",
		Short: "Write PATH's contents to stdout",
		Args:  cobra.ExactArgs(2),
	}
	catCmd.RunE = withPackage(func(_ context.Context, fsys *vfs.FS, _ string, rest []string) error {
		data, err := fsys.ReadFile(rest[0], 0, -1)
		if err != nil {
			return err
		}
		_, err = io.Copy(os.Stdout, bytes.NewReader(data))
		return err
	})
	root.AddCommand(catCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v: error: %v\n", root.CommandPath(), err)
		os.Exit(1)
	}
}
