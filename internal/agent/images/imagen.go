package images

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const defaultMIMEType = "image/png"

// imagesAPI is the slice of *genai.Models the generator needs.
type imagesAPI interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// ImagenGenerator produces one image per query with an Imagen model. Images
// come back as GCS URIs when the backend stores them, otherwise as data URLs.
type ImagenGenerator struct {
	api         imagesAPI
	model       string
	aspectRatio string
}

func NewImagenGenerator(client *genai.Client, cfg model.ImageModelConfig) *ImagenGenerator {
	return newImagenGenerator(client.Models, cfg)
}

func newImagenGenerator(api imagesAPI, cfg model.ImageModelConfig) *ImagenGenerator {
	return &ImagenGenerator{api: api, model: cfg.Model, aspectRatio: cfg.AspectRatio}
}

// Generate returns a URL for a single image rendered from query.
func (g *ImagenGenerator) Generate(ctx context.Context, query string) (string, error) {
	resp, err := g.api.GenerateImages(ctx, g.model, query, &genai.GenerateImagesConfig{
		NumberOfImages:   1,
		AspectRatio:      g.aspectRatio,
		IncludeRAIReason: true,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0] == nil {
		return "", fmt.Errorf("imagen returned no image")
	}

	gen := resp.GeneratedImages[0]
	if gen.Image == nil {
		if gen.RAIFilteredReason != "" {
			logx.Debug().Str("model", g.model).Str("reason", gen.RAIFilteredReason).Msg("image filtered")
			return "", fmt.Errorf("image filtered: %s", gen.RAIFilteredReason)
		}
		return "", fmt.Errorf("imagen returned an empty image")
	}
	return imageURL(gen.Image)
}

func imageURL(img *genai.Image) (string, error) {
	if img.GCSURI != "" {
		return img.GCSURI, nil
	}
	if len(img.ImageBytes) == 0 {
		return "", fmt.Errorf("imagen returned an empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = defaultMIMEType
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.ImageBytes), nil
}
