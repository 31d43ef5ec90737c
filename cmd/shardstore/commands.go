package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kjk/shardstore/batch"
	"github.com/kjk/shardstore/issue"
	"github.com/kjk/shardstore/log"
	"github.com/kjk/shardstore/mirror"
	"github.com/kjk/shardstore/siser"
	"github.com/kjk/shardstore/u"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

// name of siser records in export files. Each record has:
// key: the store key
// batch: the batch, as stored in a file
const exportRecordName = "export"

var exportCodec = &batch.Codec[issue.Issue]{
	Records: issue.Codec{},
	Name:    "issue",
}

// run runs fn and logs an event with the duration and number of keys
func (a *app) run(op string, nKeys int, fn func() error) error {
	timeStart := time.Now()
	err := fn()
	dur := time.Since(timeStart)
	vals := []any{"keys", nKeys}
	if err != nil {
		vals = append(vals, "error", err.Error())
	}
	log.EventWithDuration(op, dur, vals...)
	log.Verbosef("%s of %d keys took %s\n", op, nKeys, u.FormatDuration(dur))
	return err
}

func readIssuesJSON(path string) ([]issue.Issue, error) {
	d, err := u.ReadFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	var res []issue.Issue
	if err = json.Unmarshal(d, &res); err != nil {
		return nil, fmt.Errorf("'%s' is not a JSON array of issues: %w", path, err)
	}
	return res, nil
}

func (a *app) printPaths(w io.Writer, keys []string) error {
	for _, key := range keys {
		if _, err := fmt.Fprintln(w, a.store.Path(key)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) save(w io.Writer, key string, path string) error {
	issues, err := readIssuesJSON(path)
	if err != nil {
		return err
	}
	if err = a.store.Save(key, issues); err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %d issues for '%s'\n", len(issues), key)
	return nil
}

func (a *app) load(w io.Writer, key string) error {
	issues, err := a.store.Load(key)
	if err != nil {
		return err
	}
	d, err := json.Marshal(issues)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

func (a *app) deleteKeys(w io.Writer, keys []string) error {
	for _, key := range keys {
		if err := a.store.Delete(key); err != nil {
			return err
		}
		log.Verbosef("deleted '%s'\n", key)
	}
	fmt.Fprintf(w, "deleted %d keys\n", len(keys))
	return nil
}

// importFile imports a JSON array of issues or a file created with export
func (a *app) importFile(w io.Writer, path string) error {
	d, err := u.ReadFileMaybeCompressed(path)
	if err != nil {
		return err
	}
	if bytes.HasPrefix(d, []byte("--- ")) {
		n, err := a.importExported(d)
		if err != nil {
			return fmt.Errorf("import of '%s' failed: %w", path, err)
		}
		fmt.Fprintf(w, "imported %d keys\n", n)
		return nil
	}
	var issues []issue.Issue
	if err = json.Unmarshal(d, &issues); err != nil {
		return fmt.Errorf("'%s' is not a JSON array of issues: %w", path, err)
	}
	if err = issue.Save(a.store, issues); err != nil {
		return err
	}
	fmt.Fprintf(w, "imported %d issues\n", len(issues))
	return nil
}

func (a *app) importExported(d []byte) (int, error) {
	r := siser.NewReader(bufio.NewReader(bytes.NewReader(d)))
	n := 0
	for r.ReadNextRecord() {
		if r.Name != exportRecordName {
			return n, fmt.Errorf("unexpected record '%s' at %d", r.Name, r.CurrRecordPos)
		}
		key, ok := r.Record.Get("key")
		if !ok {
			return n, fmt.Errorf("record at %d has no key", r.CurrRecordPos)
		}
		data, _ := r.Record.Get("batch")
		issues, err := exportCodec.Decode([]byte(data))
		if err != nil {
			return n, fmt.Errorf("batch for '%s': %w", key, err)
		}
		if err = a.store.Save(key, issues); err != nil {
			return n, err
		}
		n++
	}
	return n, r.Err()
}

func (a *app) export(w io.Writer, out string, keys []string) error {
	f, err := u.CreateFileMaybeCompressed(out)
	if err != nil {
		return err
	}
	err = a.writeExport(f, keys)
	err = u.FirstErr(err, f.Close())
	if err != nil {
		log.IfErrf(os.Remove(out), "failed to remove partial export '%s'", out)
		return err
	}
	log.Verbosef("wrote '%s' of size %s\n", out, u.FormatSize(u.FileSize(out)))
	fmt.Fprintf(w, "exported %d keys to '%s'\n", len(keys), out)
	return nil
}

func (a *app) writeExport(dst io.Writer, keys []string) error {
	w := siser.NewWriter(dst)
	var rec siser.Record
	for _, key := range keys {
		issues, err := a.store.Load(key)
		if err != nil {
			return err
		}
		d, err := exportCodec.Encode(issues)
		if err != nil {
			return err
		}
		if err = rec.Write("key", key, "batch", string(d)); err != nil {
			return err
		}
		if _, err = w.WriteRecord(&rec, exportRecordName); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) push(ctx context.Context, w io.Writer) error {
	c, err := mirror.New(ctx, &a.cfg.S3)
	if err != nil {
		return err
	}
	n, err := c.Push(ctx, a.store.Root())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pushed %d files to bucket '%s'\n", n, c.Bucket)
	return nil
}

func (a *app) pull(ctx context.Context, w io.Writer) error {
	c, err := mirror.New(ctx, &a.cfg.S3)
	if err != nil {
		return err
	}
	n, err := c.Pull(ctx, a.store.Root())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "pulled %d files from bucket '%s'\n", n, c.Bucket)
	return nil
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <key>...",
		Short: "Print path of the file storing a key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printPaths(cmd.OutOrStdout(), args)
		},
	}
}

func (a *app) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <key> <issues.json>",
		Short: "Replace issues stored for a key with issues from a JSON file",
		Long: `Replace issues stored for a key with issues from a JSON file.
The file can be compressed (.gz, .zst, .br).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("save", 1, func() error {
				return a.save(cmd.OutOrStdout(), args[0], args[1])
			})
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <key>",
		Short: "Print issues stored for a key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("load", 1, func() error {
				return a.load(cmd.OutOrStdout(), args[0])
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete issues stored for keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("delete", len(args), func() error {
				return a.deleteKeys(cmd.OutOrStdout(), args)
			})
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import issues grouped by path, or a file created with export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("import", 0, func() error {
				return a.importFile(cmd.OutOrStdout(), args[0])
			})
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export -o <file> <key>...",
		Short: "Export batches of keys to a file",
		Long: `Export batches of keys to a file that can be read with import.
The file is compressed if its name ends with .gz, .zst or .br.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("export", len(args), func() error {
				return a.export(cmd.OutOrStdout(), out, args)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "file to export to")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the store to S3-compatible storage (env SHARDSTORE_S3_*)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("push", 0, func() error {
				return a.push(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the store from S3-compatible storage (env SHARDSTORE_S3_*)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run("pull", 0, func() error {
				return a.pull(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}
