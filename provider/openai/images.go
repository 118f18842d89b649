package openai

import (
	"context"
	"log/slog"

	"github.com/casualjim/weave/provider"
	"github.com/openai/openai-go"
)

// GenerateImages asks the image model for req.Count images and returns them
// base64 encoded. Reference images are not supported by the generation
// endpoint and are ignored.
func (p *Provider) GenerateImages(ctx context.Context, req provider.ImageRequest) ([]provider.GeneratedImage, error) {
	if len(req.References) > 0 {
		p.logger.Debug("ignoring reference images", slog.Int("references", len(req.References)))
	}
	n := int64(max(req.Count, 1))
	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         openai.F(req.Prompt),
		Model:          openai.F(p.imageModel),
		N:              openai.Int(n),
		ResponseFormat: openai.F(openai.ImageGenerateParamsResponseFormatB64JSON),
	})
	if err != nil {
		return nil, p.mapError(err)
	}

	images := make([]provider.GeneratedImage, 0, len(resp.Data))
	for _, img := range resp.Data {
		if img.B64JSON == "" {
			continue
		}
		images = append(images, provider.GeneratedImage{MediaType: "image/png", Base64: img.B64JSON})
	}
	return images, nil
}
