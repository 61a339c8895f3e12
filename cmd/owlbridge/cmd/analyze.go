package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze --file FILE --line N --character N [-- command [args...]]",
	Short: "Analyze one file locally and print the result",
	Long: `Run a single analysis transaction without starting the HTTP server.

The file's contents are written to a fresh document in the workspace, the
engine is spawned, and the result for the given zero-based position is
printed to stdout. Use --file - to read the source from stdin.

Examples:
  owlbridge analyze --file src/main.rs --line 3 --character 8
  owlbridge analyze --file src/lib.rs --line 10 --character 4 --format yaml
  cat main.rs | owlbridge analyze --file - --line 0 --character 3`,
	Args: cobra.ArbitraryArgs,
	RunE: runAnalyze,
}

var (
	analyzeFile      string
	analyzeLine      uint32
	analyzeCharacter uint32
	analyzeFormat    string
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "source file to analyze (\"-\" for stdin)")
	analyzeCmd.Flags().Uint32VarP(&analyzeLine, "line", "l", 0, "zero-based cursor line")
	analyzeCmd.Flags().Uint32VarP(&analyzeCharacter, "character", "c", 0, "zero-based cursor character")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or yaml")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeFormat != "json" && analyzeFormat != "yaml" {
		return fmt.Errorf("unsupported format %q (want json or yaml)", analyzeFormat)
	}

	source, err := readSource(analyzeFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	svc, _ := newAnalysisService(cfg, logger, cmd.ErrOrStderr(), nil)
	result, err := svc.Analyze(ctx, analysis.Request{
		Source:    source,
		Line:      analyzeLine,
		Character: analyzeCharacter,
	})
	if err != nil {
		return fmt.Errorf("analysis failed (%s): %w", analysis.KindOf(err), err)
	}

	return writeResult(cmd.OutOrStdout(), result, analyzeFormat)
}

func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

// writeResult prints the raw engine result as indented JSON or as YAML.
func writeResult(w io.Writer, result json.RawMessage, format string) error {
	if format == "yaml" {
		var v any
		if err := json.Unmarshal(result, &v); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
