package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rjrahulyadav/ramiyaa-chemical/internal/client"
)

const timeLayout = "2006-01-02 15:04:05"

var parameters = []string{"flowrate", "pressure", "temperature"}

func newDatasetsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "datasets",
		Aliases: []string{"ls", "list"},
		Short:   "List the retained datasets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}

			datasets, err := c.Datasets(cmd.Context())
			if err != nil {
				return err
			}

			if len(datasets) == 0 {
				fmt.Fprintln(g.out, "No datasets found.")
				return nil
			}
			printDatasets(g.out, datasets)
			return nil
		},
	}
}

func newUploadCommand(g *globals) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload an equipment CSV file",
		Long: `Upload an equipment CSV file. The file needs the columns Equipment Name,
Type, Flowrate, Pressure and Temperature. Only the five newest datasets are
kept by the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}

			dataset, err := c.Upload(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "Uploaded %q as dataset %d with %d rows.\n", dataset.Name, dataset.ID, dataset.TotalCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Dataset name (defaults to the upload time)")

	return cmd
}

func newSummaryCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <dataset-id>",
		Short: "Show averages and the type distribution of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			summary, err := c.Summary(cmd.Context(), id)
			if err != nil {
				return err
			}

			printSummary(g.out, summary)
			return nil
		},
	}
}

func newRowsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "rows <dataset-id>",
		Aliases: []string{"equipment"},
		Short:   "List the equipment rows of a dataset",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			rows, err := c.Equipment(cmd.Context(), id)
			if err != nil {
				return err
			}

			printRows(g.out, rows)
			return nil
		},
	}
}

func newShowCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset-id>",
		Short: "Show the summary and the rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			summary, rows, err := fetchDetails(cmd.Context(), c, id)
			if err != nil {
				return err
			}

			printSummary(g.out, summary)
			fmt.Fprintln(g.out)
			printRows(g.out, rows)
			return nil
		},
	}
}

func newPDFCommand(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "pdf <dataset-id>",
		Aliases: []string{"report"},
		Short:   "Download the PDF report of a dataset",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			path, err := saveReport(cmd.Context(), c, id, output)
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "Saved report to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to the server supplied name)")

	return cmd
}

func newChartsCommand(g *globals) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "charts <dataset-id>",
		Short: "Render the dataset charts as PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := g.client()
			if err != nil {
				return err
			}

			summary, rows, err := fetchDetails(cmd.Context(), c, id)
			if err != nil {
				return err
			}

			written, err := client.WriteCharts(dir, summary, rows)
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(g.out, "Wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "charts", "Directory the PNG files are written to")

	return cmd
}

// fetchDetails loads the summary and the rows of a dataset concurrently.
func fetchDetails(ctx context.Context, c *client.Client, id int64) (client.Summary, []client.Equipment, error) {
	var (
		summary client.Summary
		rows    []client.Equipment
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		summary, err = c.Summary(ctx, id)
		return err
	})
	eg.Go(func() (err error) {
		rows, err = c.Equipment(ctx, id)
		return err
	})
	if err := eg.Wait(); err != nil {
		return client.Summary{}, nil, err
	}

	return summary, rows, nil
}

func saveReport(ctx context.Context, c *client.Client, id int64, output string) (string, error) {
	report, err := c.Report(ctx, id)
	if err != nil {
		return "", err
	}

	if output == "" {
		output = report.Filename
	}
	if err := writeFile(output, report.Content); err != nil {
		return "", err
	}

	return output, nil
}

func writeFile(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid dataset id %q", arg)
	}
	return id, nil
}

func printDatasets(out io.Writer, datasets []client.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tFILE\tROWS\tUPLOADED")
	for _, d := range datasets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.FileName, d.TotalCount, formatTime(d.UploadedAt))
	}
}

func printSummary(out io.Writer, s client.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Dataset:\t%s (%d)\n", s.DatasetName, s.DatasetID)
	if !s.UploadedAt.IsZero() {
		fmt.Fprintf(w, "Uploaded:\t%s\n", formatTime(s.UploadedAt))
	}
	fmt.Fprintf(w, "Rows:\t%d\n", s.TotalCount)

	fmt.Fprintln(w, "\nPARAMETER\tAVERAGE\tSAMPLES")
	for _, p := range parameters {
		avg, ok := s.Average(p)
		value := "n/a"
		if ok {
			value = strconv.FormatFloat(avg, 'f', 2, 64)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", p, value, s.Samples[p])
	}

	types := make([]string, 0, len(s.TypeDistribution))
	for t := range s.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Fprintln(w, "\nTYPE\tCOUNT")
	for _, t := range types {
		fmt.Fprintf(w, "%s\t%d\n", t, s.TypeDistribution[t])
	}
}

func printRows(out io.Writer, rows []client.Equipment) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "Dataset has no rows.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tTYPE\tFLOWRATE\tPRESSURE\tTEMPERATURE")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Type,
			formatValue(r.Flowrate), formatValue(r.Pressure), formatValue(r.Temperature))
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}
