package images

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
)

type fakeImagesAPI struct {
	resp   *genai.GenerateImagesResponse
	err    error
	model  string
	prompt string
	config *genai.GenerateImagesConfig
}

func (f *fakeImagesAPI) GenerateImages(_ context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	f.model, f.prompt, f.config = model, prompt, config
	return f.resp, f.err
}

func newTestGenerator(api *fakeImagesAPI) *ImagenGenerator {
	return newImagenGenerator(api, model.ImageModelConfig{Model: "imagen-test", AspectRatio: "16:9"})
}

func TestGenerateReturnsDataURL(t *testing.T) {
	api := &fakeImagesAPI{resp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{ImageBytes: []byte("png"), MIMEType: "image/png"}}},
	}}
	url, err := newTestGenerator(api).Generate(context.Background(), "a lighthouse")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", url)
	assert.Equal(t, "imagen-test", api.model)
	assert.Equal(t, "a lighthouse", api.prompt)
	assert.Equal(t, "16:9", api.config.AspectRatio)
}

func TestGeneratePrefersGCSURI(t *testing.T) {
	api := &fakeImagesAPI{resp: &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{GCSURI: "gs://bucket/a.png", ImageBytes: []byte("x")}}},
	}}
	url, err := newTestGenerator(api).Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/a.png", url)
}

func TestGenerateErrors(t *testing.T) {
	cases := map[string]*fakeImagesAPI{
		"api error": {err: errors.New("boom")},
		"no images": {resp: &genai.GenerateImagesResponse{}},
		"filtered":  {resp: &genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{{RAIFilteredReason: "unsafe"}}}},
		"empty":     {resp: &genai.GenerateImagesResponse{GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{}}}}},
	}
	for name, api := range cases {
		_, err := newTestGenerator(api).Generate(context.Background(), "q")
		assert.Error(t, err, name)
	}
}
