package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"docselect/internal/docstore"
	"docselect/internal/document"
	"docselect/internal/selection"
)

func newLoadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "load [pattern...]",
		Short: "Apply feed files to the document store",
		Long:  "Applies every operation in the feed files matching the glob patterns (default: <home>/feeds/**/*.json). Operations whose condition is not met are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			store, err := e.openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			patterns := args
			if len(patterns) == 0 {
				patterns = []string{filepath.Join(e.home.FeedDir(), "**", "*.json")}
			}
			files, err := discoverFeeds(patterns)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no feed files match %v", patterns)
			}

			var applied, skipped int
			for _, path := range files {
				ops, err := readFeed(path, store.Registry())
				if err != nil {
					return err
				}
				for _, fo := range ops {
					_, err := store.Apply(ctx, fo)
					switch {
					case err == nil:
						applied++
					case errors.Is(err, docstore.ErrConditionFailed), errors.Is(err, docstore.ErrNotFound):
						skipped++
						e.logger.Info("operation skipped",
							"file", path,
							"op", document.OperationName(fo.Op),
							"id", fo.Op.DocumentID().String(),
							"reason", err)
					default:
						return fmt.Errorf("%s: %w", path, err)
					}
				}
				e.logger.Debug("feed applied", "file", path, "operations", len(ops))
			}

			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			if e.out.isJSON() {
				return e.out.json(map[string]any{
					"files": len(files), "applied": applied, "skipped": skipped, "documents": total,
				})
			}
			e.out.kv([][2]string{
				{"Files", strconv.Itoa(len(files))},
				{"Applied", strconv.Itoa(applied)},
				{"Skipped", strconv.Itoa(skipped)},
				{"Documents", strconv.FormatInt(total, 10)},
			})
			return nil
		},
	}
}

func newVisitCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visit <selection>",
		Short: "Stream stored documents matching a selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ordered, _ := cmd.Flags().GetBool("ordered")
			desc, _ := cmd.Flags().GetBool("desc")
			parallel, _ := cmd.Flags().GetInt("parallel")
			perSecond, _ := cmd.Flags().GetFloat64("rate")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			store, err := e.openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sel, err := selection.New(args[0],
				selection.WithRegistry(store.Registry()),
				selection.WithBucketFactory(store.Factory()))
			if err != nil {
				return err
			}

			opts := docstore.VisitOptions{Ordered: ordered, Parallelism: parallel}
			if desc {
				opts.Direction = selection.Descending
			}
			if perSecond > 0 {
				opts.RateLimit = rate.Limit(perSecond)
				opts.Burst = 1
			}

			errLimit := errors.New("limit reached")
			var (
				rows [][]string
				docs []map[string]any
			)
			stats, err := store.Visit(ctx, sel, opts, func(d *document.Document) error {
				if e.out.isJSON() {
					docs = append(docs, map[string]any{
						"id":     d.ID.String(),
						"type":   d.Type.Name(),
						"fields": document.EncodeFields(d),
					})
				} else {
					rows = append(rows, []string{d.ID.String(), d.Type.Name()})
				}
				if limit > 0 && len(rows)+len(docs) >= limit {
					return errLimit
				}
				return nil
			})
			if err != nil && !errors.Is(err, errLimit) {
				return err
			}

			if e.out.isJSON() {
				return e.out.json(map[string]any{
					"session":   stats.Session,
					"documents": docs,
					"scanned":   stats.Scanned,
					"matched":   stats.Matched,
					"invalid":   stats.Invalid,
					"faults":    stats.Faults,
				})
			}
			e.out.table([]string{"ID", "TYPE"}, rows)
			e.logger.Info("visit summary",
				"session", stats.Session,
				"scanned", stats.Scanned,
				"matched", stats.Matched,
				"invalid", stats.Invalid,
				"faults", stats.Faults)
			return nil
		},
	}
	cmd.Flags().Bool("ordered", false, "visit orderdoc documents in ordering order")
	cmd.Flags().Bool("desc", false, "descending order (with --ordered)")
	cmd.Flags().Int("parallel", 4, "concurrent bucket scans")
	cmd.Flags().Float64("rate", 0, "maximum documents per second (0: unlimited)")
	cmd.Flags().Int("limit", 0, "stop after this many documents (0: all)")
	return cmd
}
