package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  path <key>...
  save <key> <issues.json>
  load <key>
  delete <key>...
  import <file>
  export <file> <key>...
  help
  exit
Arguments are split like in a shell so keys with spaces can be quoted.
`

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands read from stdin, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.shell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// shell runs commands until "exit" or end of input.
// A failed command doesn't stop the shell.
func (a *app) shell(ctx context.Context, in io.Reader, w io.Writer) error {
	fmt.Fprintf(w, "Store in '%s'. Type 'help' for information or 'exit' to quit.\n", a.store.Root())
	reader := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(w, "> ")
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		atEOF := err == io.EOF
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			if err := a.execLine(w, line); err != nil {
				fmt.Fprintf(w, "error: %v\n", err)
			}
		}
		if atEOF {
			fmt.Fprintln(w)
			return nil
		}
	}
}

func (a *app) execLine(w io.Writer, line string) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := args[0], args[1:]
	needArgs := func(n int, exact bool) error {
		if len(args) < n || (exact && len(args) != n) {
			return fmt.Errorf("wrong number of arguments for '%s', type 'help'", cmd)
		}
		return nil
	}
	switch cmd {
	case "help":
		fmt.Fprint(w, shellHelp)
		return nil
	case "path":
		if err = needArgs(1, false); err != nil {
			return err
		}
		return a.printPaths(w, args)
	case "save":
		if err = needArgs(2, true); err != nil {
			return err
		}
		return a.run("save", 1, func() error {
			return a.save(w, args[0], args[1])
		})
	case "load":
		if err = needArgs(1, true); err != nil {
			return err
		}
		return a.run("load", 1, func() error {
			return a.load(w, args[0])
		})
	case "delete":
		if err = needArgs(1, false); err != nil {
			return err
		}
		return a.run("delete", len(args), func() error {
			return a.deleteKeys(w, args)
		})
	case "import":
		if err = needArgs(1, true); err != nil {
			return err
		}
		return a.run("import", 0, func() error {
			return a.importFile(w, args[0])
		})
	case "export":
		if err = needArgs(2, false); err != nil {
			return err
		}
		return a.run("export", len(args)-1, func() error {
			return a.export(w, args[0], args[1:])
		})
	}
	return fmt.Errorf("unknown command '%s', type 'help'", cmd)
}
