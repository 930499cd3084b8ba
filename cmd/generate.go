package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vintera/labelforge/internal/pipeline"
)

var (
	generateInput  string
	generateOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the full label-generation pipeline for a submission",
	Long: `Reads a wine submission (YAML or JSON) and runs the pipeline:
design scheme, artwork prompts, image generation, detailed layout,
render and refinement. Prints the resulting label DSL and preview URL.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateInput, "input", "i", "", "submission file (YAML or JSON)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write the label DSL here instead of stdout")
	_ = generateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sub, err := readSubmission(generateInput)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result, err := a.generator.Run(ctx, sub)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	doc, err := result.DSL.Serialize()
	if err != nil {
		return err
	}
	if generateOutput != "" {
		if err := os.WriteFile(generateOutput, doc, 0o640); err != nil {
			return fmt.Errorf("writing label DSL: %w", err)
		}
	} else {
		fmt.Println(string(doc))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "generation: %s\npreview:    %s\n",
		result.Generation.ID, result.PreviewURL)
	for _, img := range result.Images {
		if img.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "asset %s: FAILED: %v\n", img.Spec.AssetID, img.Err)
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "asset %s: %s\n", img.Asset.ID, img.Asset.URL)
	}
	return nil
}

// readSubmission loads a YAML or JSON submission file.
func readSubmission(path string) (pipeline.Submission, error) {
	v := viper.New()
	v.SetConfigFile(path)

	var sub pipeline.Submission
	if err := v.ReadInConfig(); err != nil {
		return sub, fmt.Errorf("reading submission %s: %w", path, err)
	}
	if err := v.Unmarshal(&sub); err != nil {
		return sub, fmt.Errorf("parsing submission %s: %w", path, err)
	}
	if err := sub.Check(); err != nil {
		return sub, err
	}
	return sub, nil
}

// printJSON renders a value as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
