package cli

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"docselect/internal/document"
	"docselect/internal/selection"
)

func newParseCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <selection>",
		Short: "Parse a selection and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := e.registry(cmd, false)
			if err != nil {
				return err
			}
			sel, err := e.selector(args[0], reg)
			if err != nil {
				return err
			}
			if e.out.isJSON() {
				return e.out.json(map[string]any{
					"selection":           sel.String(),
					"requires_conversion": sel.RequiresConversion(),
				})
			}
			_, _ = fmt.Fprintln(e.out.w, sel.String())
			return nil
		},
	}
}

func newEvalCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <selection> <feed-file>",
		Short: "Evaluate a selection against each operation in a feed file",
		Long:  "Evaluates the selection against every operation in the feed file (JSON array or stream of objects) and prints the three-valued result per operation.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nowFlag, _ := cmd.Flags().GetInt64("now")
			bindings, _ := cmd.Flags().GetBool("bindings")

			reg, err := e.registry(cmd, true)
			if err != nil {
				return err
			}
			sel, err := e.selector(args[0], reg)
			if err != nil {
				return err
			}
			ops, err := readFeed(args[1], reg)
			if err != nil {
				return err
			}

			var evalOpts []selection.ContextOption
			if nowFlag != 0 {
				evalOpts = append(evalOpts, selection.WithClock(func() time.Time { return time.Unix(nowFlag, 0) }))
			}

			type row struct {
				ID        string `json:"id"`
				Operation string `json:"operation"`
				Result    string `json:"result"`
				Bindings  string `json:"bindings,omitempty"`
				Error     string `json:"error,omitempty"`
			}
			var rows []row
			for _, fo := range ops {
				r := row{ID: fo.Op.DocumentID().String(), Operation: document.OperationName(fo.Op)}
				list, err := sel.EvaluateList(fo.Op, evalOpts...)
				if err != nil {
					r.Result, r.Error = selection.Invalid.String(), err.Error()
					rows = append(rows, r)
					continue
				}
				r.Result = list.ToResult().String()
				if bindings {
					r.Bindings = list.String()
				}
				rows = append(rows, r)
			}

			if e.out.isJSON() {
				return e.out.json(rows)
			}
			header := []string{"ID", "OP", "RESULT"}
			if bindings {
				header = append(header, "BINDINGS")
			}
			header = append(header, "ERROR")
			table := make([][]string, len(rows))
			for i, r := range rows {
				cols := []string{r.ID, r.Operation, r.Result}
				if bindings {
					cols = append(cols, r.Bindings)
				}
				table[i] = append(cols, r.Error)
			}
			e.out.table(header, table)
			return nil
		},
	}
	cmd.Flags().Int64("now", 0, "evaluate now() at this unix time (default: current time)")
	cmd.Flags().Bool("bindings", false, "print per-binding results")
	return cmd
}

func newBucketsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets <selection>",
		Short: "Print the buckets a selection can match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := e.registry(cmd, false)
			if err != nil {
				return err
			}
			sel, err := e.selector(args[0], reg)
			if err != nil {
				return err
			}
			set, ok := sel.Buckets()

			var ids []string
			for _, b := range set.Sorted() {
				ids = append(ids, b.String())
			}
			if e.out.isJSON() {
				return e.out.json(map[string]any{"constrained": ok, "buckets": ids})
			}
			if !ok {
				_, _ = fmt.Fprintln(e.out.w, "all buckets")
				return nil
			}
			if len(ids) == 0 {
				_, _ = fmt.Fprintln(e.out.w, "no buckets")
				return nil
			}
			rows := make([][]string, len(ids))
			for i, b := range set.Sorted() {
				rows[i] = []string{ids[i], strconv.Itoa(b.UsedBits()), fmt.Sprintf("0x%x", b.Location())}
			}
			e.out.table([]string{"BUCKET", "USED BITS", "LOCATION"}, rows)
			return nil
		},
	}
}

func newOrderCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order <selection>",
		Short: "Print the ordered-scan bound of a selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, _ := cmd.Flags().GetBool("desc")
			dir := selection.Ascending
			if desc {
				dir = selection.Descending
			}

			sel, err := e.selector(args[0], nil)
			if err != nil {
				return err
			}
			spec, ok := sel.Ordering(dir)
			if e.out.isJSON() {
				if !ok {
					return e.out.json(map[string]any{"direction": dir.String(), "bounded": false})
				}
				return e.out.json(map[string]any{
					"direction": dir.String(),
					"bounded":   true,
					"start":     spec.Start,
					"width":     spec.WidthBits,
					"division":  spec.DivisionBits,
				})
			}
			if !ok {
				_, _ = fmt.Fprintf(e.out.w, "no %s bound\n", dir)
				return nil
			}
			e.out.kv([][2]string{
				{"Direction", dir.String()},
				{"Start", strconv.FormatInt(spec.Start, 10)},
				{"Width bits", strconv.Itoa(int(spec.WidthBits))},
				{"Division bits", strconv.Itoa(int(spec.DivisionBits))},
			})
			return nil
		},
	}
	cmd.Flags().Bool("desc", false, "descending scan")
	return cmd
}

func newConvertCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <selection>",
		Short: "Rewrite a now() selection into per-document-type queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := e.selector(args[0], nil)
			if err != nil {
				return err
			}
			if !sel.RequiresConversion() {
				return fmt.Errorf("selection does not use now()")
			}
			queries, err := sel.Convert()
			if err != nil {
				return err
			}
			if e.out.isJSON() {
				return e.out.json(queries)
			}
			types := slices.Sorted(maps.Keys(queries))
			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t, queries[t]}
			}
			e.out.table([]string{"TYPE", "QUERY"}, rows)
			return nil
		},
	}
}

func readFeed(path string, reg *document.Registry) ([]document.FeedOperation, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ops, err := document.DecodeOperations(f, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ops, nil
}
