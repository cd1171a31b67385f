package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"jacref/internal/config"
	"jacref/internal/extractor"
	"jacref/internal/jac"
	"jacref/internal/pipeline"
	"jacref/internal/rules"
	"jacref/internal/validator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "jacref",
		Short: "Compress Jac documentation into a validated LLM-ready reference",
	}
	configPath string
	outputPath string
	extractOut string
	splitOut   string
	streamOut  bool
	strictMode bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (defaults apply when omitted)")

	runCmd.Flags().StringVarP(&outputPath, "output", "o", "jac-reference.md", "Path for the assembled reference document")
	runCmd.Flags().BoolVar(&streamOut, "stream", false, "Stream LLM tokens to stdout during assembly")
	runCmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on any invalid code block")

	assembleCmd.Flags().StringVarP(&outputPath, "output", "o", "jac-reference.md", "Path for the assembled reference document")
	assembleCmd.Flags().BoolVar(&streamOut, "stream", false, "Stream LLM tokens to stdout during assembly")

	extractCmd.Flags().StringVarP(&extractOut, "output", "o", "", "Write the skeleton to a file instead of stdout")
	splitCmd.Flags().StringVarP(&splitOut, "output", "o", "rules.jsonl", "Path for the rule nugget JSONL file")
	validateCmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on any invalid code block")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// signalContext cancels on interrupt so a Ctrl-C still produces a summary.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func printSummary(summary *pipeline.Summary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	fmt.Println("\n---JSON_SUMMARY---")
	fmt.Println(string(data))
	fmt.Println("---END_SUMMARY---")
}

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"pipeline"},
	Short:   "Run the full pipeline: extract, retrieve, assemble, validate",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			printSummary(&pipeline.Summary{Error: err.Error()})
			color.Red("Failed to load config: %v", err)
			os.Exit(2)
		}
		if strictMode {
			cfg.Validation.Strict = true
		}

		p := pipeline.New(cfg, outputPath)
		p.Stream = streamOut

		summary, err := p.Run(ctx)
		printSummary(summary)

		switch {
		case ctx.Err() != nil:
			color.Red("Interrupted")
			os.Exit(2)
		case err != nil && isValidationFailure(err):
			color.Red("Validation failed: %v", err)
			os.Exit(1)
		case err != nil:
			color.Red("Pipeline failed: %v", err)
			os.Exit(2)
		case !passed(summary, cfg):
			color.Yellow("Pipeline completed but validation did not pass")
			os.Exit(1)
		default:
			color.Green("Pipeline complete: %s", outputPath)
		}
	},
}

func isValidationFailure(err error) bool {
	var vErr *validator.ValidationError
	return errors.As(err, &vErr)
}

// passed decides the run exit code from the summary: the final pattern check
// must hold and checked blocks must meet the threshold.
func passed(summary *pipeline.Summary, cfg *config.Config) bool {
	if !summary.FinalValid {
		return false
	}
	checked := summary.Validation.Passed + summary.Validation.Failed
	if checked == 0 {
		return true
	}
	return summary.Validation.PassRate >= cfg.Validation.FailThreshold
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Extract, retrieve and assemble the reference without validating it",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			printSummary(&pipeline.Summary{Error: err.Error()})
			color.Red("Failed to load config: %v", err)
			os.Exit(2)
		}

		p := pipeline.New(cfg, outputPath)
		p.Stream = streamOut
		p.SkipValidation = true

		summary, err := p.Run(ctx)
		printSummary(summary)

		switch {
		case ctx.Err() != nil:
			color.Red("Interrupted")
			os.Exit(2)
		case err != nil:
			color.Red("Assembly failed: %v", err)
			os.Exit(2)
		default:
			color.Green("Assembled %s (validation skipped)", outputPath)
		}
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [dir]",
	Short: "Extract body-less signatures from .jac sources into a skeleton document",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			color.Red("Failed to load config: %v", err)
			os.Exit(2)
		}

		ex := extractor.New(jac.NewCommandParser(cfg.Validation.JacBinary))
		result, err := ex.ProcessDirectory(dir)
		if err != nil {
			color.Red("Extraction failed: %v", err)
			os.Exit(2)
		}

		fmt.Printf("📊 %d files, %d definitions (strategy: %s)\n",
			result.TotalFiles, len(result.Definitions), ex.StrategyName())
		for kind, n := range result.Totals {
			fmt.Printf("  -> %s: %d\n", kind, n)
		}

		skeleton := result.Skeleton()
		if extractOut == "" {
			fmt.Println(skeleton)
			return
		}
		if err := os.WriteFile(extractOut, []byte(skeleton), 0o644); err != nil {
			color.Red("Failed to write %s: %v", extractOut, err)
			os.Exit(2)
		}
		color.Green("Wrote %s", extractOut)
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <rules-doc>",
	Short: "Split an instruction document into tagged rule nuggets (JSONL)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			color.Red("Failed to read %s: %v", args[0], err)
			os.Exit(2)
		}

		nuggets := (&rules.Splitter{}).Split(string(data))
		if err := rules.WriteJSONL(splitOut, nuggets); err != nil {
			color.Red("Failed to write %s: %v", splitOut, err)
			os.Exit(2)
		}

		byCategory := make(map[string]int)
		for _, n := range nuggets {
			byCategory[n.Category]++
		}
		fmt.Printf("📚 %d nuggets -> %s\n", len(nuggets), splitOut)
		for category, n := range byCategory {
			fmt.Printf("  -> %s: %d\n", category, n)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <document>",
	Short: "Validate an assembled reference document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			color.Red("Failed to load config: %v", err)
			os.Exit(2)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			color.Red("Failed to read %s: %v", args[0], err)
			os.Exit(2)
		}
		text := string(data)

		parser := jac.NewCommandParser(cfg.Validation.JacBinary)
		v := validator.New(parser)

		final := v.ValidateFinal(text, nil)
		for _, issue := range final.Issues {
			color.Yellow("⚠️  %s", issue)
		}

		summary := &pipeline.Summary{
			Artifact:   args[0],
			FinalValid: final.IsValid,
		}
		summary.FinalIssues = final.Issues

		if !parser.Available() {
			color.Yellow("⚠️  jac binary %q not found, skipping example syntax check", cfg.Validation.JacBinary)
			printSummary(summary)
			if !final.IsValid {
				os.Exit(1)
			}
			return
		}

		if strictMode || cfg.Validation.Strict {
			result, err := v.ValidateStrict(ctx, text, nil)
			summary.Validation = result
			printSummary(summary)
			if err != nil {
				color.Red("%v", err)
				os.Exit(1)
			}
		} else {
			summary.Validation = v.ValidateAllExamples(ctx, text, cfg.Validation.FailThreshold, nil)
			printSummary(summary)
		}

		checked := summary.Validation.Passed + summary.Validation.Failed
		if !final.IsValid || (checked > 0 && summary.Validation.PassRate < cfg.Validation.FailThreshold) {
			color.Red("Validation did not pass (%.1f%% pass rate)", summary.Validation.PassRate)
			os.Exit(1)
		}
		color.Green("✅ %s validated (%d blocks, %.1f%% pass rate)",
			args[0], summary.Validation.TotalBlocks, summary.Validation.PassRate)
	},
}
