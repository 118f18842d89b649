package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/casualjim/weave"
	"github.com/casualjim/weave/provider/openai"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newImagesCommand(g *globalFlags) *cobra.Command {
	var (
		count      int
		imageModel string
		references []string
	)
	cmd := &cobra.Command{
		Use:   "images <prompt>",
		Short: "Generate images and print their storage keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			inf, err := connectInfra(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer inf.close()

			p := openai.New(g.model).WithImageModel(imageModel)
			engine, err := newEngine(p, inf, true, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			keys, err := engine.GenerateImages(cmd.Context(), weave.ImageRequest{
				Prompt:     strings.Join(args, " "),
				References: references,
				Count:      count,
			}, func(key string) {
				if !g.json {
					fmt.Fprintf(out, "%s %s\n", imageColor.Sprint("image"), key)
				}
			})
			if g.json {
				if encErr := json.NewEncoder(out).Encode(map[string]any{"keys": keys}); encErr != nil {
					return encErr
				}
			}
			return describeError(err)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of images to generate")
	cmd.Flags().StringVar(&imageModel, "image-model", "dall-e-3", "image generation model")
	cmd.Flags().StringArrayVar(&references, "reference", nil, "reference image URL, can be repeated")
	return cmd
}
