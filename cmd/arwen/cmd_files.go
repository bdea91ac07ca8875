package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"arwen/internal/check"
	"arwen/internal/parser"
	"arwen/internal/render"
	"arwen/internal/source"
	"arwen/internal/spec"

	"github.com/spf13/cobra"
)

var (
	parseJSON bool

	renderOut  string
	renderName string

	checkSource string
	checkClient string
)

// parseCmd parses an annotation file and prints it back
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse an annotation file",
	Long: `Parses an engine annotation file (let preds / let pre / let post) and
prints the declared predicates and the typed pre/post specifications.

With --json the post-condition is printed in the engine's wire encoding.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

// renderCmd normalizes an annotation file
var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Re-render an annotation file in canonical form",
	Long: `Parses an annotation file and renders it back in the engine's concrete
syntax. Without --out the result goes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

// checkCmd validates an annotation file
var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check predicate use in an annotation file",
	Long: `Reports predicates used in pre/post bodies that are not declared in the
file's preds list. With --source and --client it also confirms that the
client function is a top-level binding of the OCaml source.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print the post-condition as wire JSON")

	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output directory")
	renderCmd.Flags().StringVar(&renderName, "name", "", "Output file name (default: input base name)")

	checkCmd.Flags().StringVar(&checkSource, "source", "", "OCaml source file")
	checkCmd.Flags().StringVar(&checkClient, "client", "", "Client function name")
}

func runParse(cmd *cobra.Command, args []string) error {
	f, err := parser.ParseFileAt(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if parseJSON {
		data, err := json.Marshal(f.Post)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	st := stylesFor(out)
	fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "preds:"), strings.Join(f.Preds.Symbols(), ", "))
	if f.Pre != nil {
		fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "pre:"), f.Pre)
	}
	fmt.Fprintf(out, "%s %s\n", st.Render(st.Label, "post:"), f.Post)
	fmt.Fprintf(out, "%s\n", st.Render(st.Muted, fmt.Sprintf("size %d", f.Post.Formula.Body.Size())))
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	f, err := parser.ParseFileAt(args[0])
	if err != nil {
		return err
	}
	if renderOut == "" {
		return render.Write(cmd.OutOrStdout(), f)
	}
	name := renderName
	if name == "" {
		name = filepath.Base(args[0])
	}
	path, err := render.WriteFile(renderOut, name, f)
	if err != nil {
		return err
	}
	logger.Sugar().Infof("wrote %s", path)
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	f, err := parser.ParseFileAt(args[0])
	if err != nil {
		return err
	}
	report := check.Predicates(f)

	if checkSource != "" && checkClient != "" {
		reader := source.NewReader()
		defer reader.Close()
		src, err := reader.ReadFile(context.Background(), checkSource)
		if err != nil {
			return err
		}
		report.Merge(check.ClientDefined(src, checkClient))
	}
	return printReport(cmd, report)
}

// printReport prints every violation and returns the report as an error
// when it failed. Warnings fail only in strict mode.
func printReport(cmd *cobra.Command, r *check.Report) error {
	out := cmd.OutOrStdout()
	st := stylesFor(out)
	for _, v := range r.Violations {
		style := st.Error
		if v.Warning {
			style = st.Warning
		}
		fmt.Fprintln(out, st.Render(style, v.String()))
	}
	if cfg != nil && cfg.Check.Strict && len(r.Violations) > 0 {
		for i := range r.Violations {
			r.Violations[i].Warning = false
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, st.Render(st.Success, "ok"))
	return nil
}

// summary is one line describing r.
func summary(r spec.Result) string {
	switch r := r.(type) {
	case spec.Discovered:
		return fmt.Sprintf("%d specifications", len(r))
	case spec.Cex:
		return fmt.Sprintf("%d counterexamples", len(r))
	}
	return "no result"
}
