package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vintera/labelforge/internal/assets"
	"github.com/vintera/labelforge/internal/dsl"
	"github.com/vintera/labelforge/internal/pipeline"
	"github.com/vintera/labelforge/internal/refine"
	"github.com/vintera/labelforge/internal/render"
)

var refineIterations int

var refineCmd = &cobra.Command{
	Use:   "refine <generation-id>",
	Short: "Run additional refinement rounds on a stored generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runRefine,
}

func init() {
	refineCmd.Flags().IntVarP(&refineIterations, "iterations", "n", 0,
		"refinement rounds (default from config)")
	rootCmd.AddCommand(refineCmd)
}

func runRefine(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	generationID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid generation id %q: %w", args[0], err)
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	gen, err := a.store.GetGeneration(ctx, generationID)
	if err != nil {
		return fmt.Errorf("loading generation: %w", err)
	}
	if len(gen.LabelDSL) == 0 {
		return fmt.Errorf("generation %s has no label to refine", generationID)
	}
	doc, err := dsl.Parse(gen.LabelDSL)
	if err != nil {
		return fmt.Errorf("stored label is invalid: %w", err)
	}

	var sub pipeline.Submission
	if err := json.Unmarshal(gen.Submission, &sub); err != nil {
		return fmt.Errorf("decoding stored submission: %w", err)
	}

	preview, previewURL, err := a.pipe.RenderStep(ctx, gen.ID, doc, gen.Iterations)
	if err != nil {
		return err
	}

	params := refine.Params{
		MaxIterations: refineIterations,
		MaxEdits:      a.cfg.Pipeline.MaxEdits,
		MaxDelta:      a.cfg.Pipeline.MaxDelta,
	}
	if params.MaxIterations <= 0 {
		params.MaxIterations = a.cfg.Pipeline.MaxIterations
	}

	base := gen.Iterations
	outcome, err := a.refiner.Run(ctx, refine.Input{
		DSL:         doc,
		Preview:     preview,
		PreviewURL:  previewURL,
		Description: sub.Describe(),
	}, params, func(ctx context.Context, iteration int, pv *render.Preview) (string, error) {
		asset, err := a.uploader.UploadImage(ctx, gen.ID,
			fmt.Sprintf("preview-%d", base+iteration), pv.Data, "")
		if err != nil {
			return "", err
		}
		return asset.URL, nil
	})
	if err != nil {
		return err
	}

	gen.Iterations += outcome.Iterations
	gen.AppliedEdits += outcome.Applied
	gen.FailedEdits += outcome.Failed
	gen.PreviewURL = outcome.PreviewURL
	gen.Status = assets.StatusCompleted
	if data, err := json.Marshal(outcome.DSL); err == nil {
		gen.LabelDSL = data
	}
	if err := a.store.UpdateGeneration(ctx, gen); err != nil {
		return fmt.Errorf("saving refined generation: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "iterations: %d\napplied:    %d\nfailed:     %d\npreview:    %s\n",
		outcome.Iterations, outcome.Applied, outcome.Failed, outcome.PreviewURL)
	return printJSON(outcome.DSL)
}
