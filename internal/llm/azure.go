package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultAzureAPIVersion = "2024-12-01-preview"

type AzureConfig struct {
	Endpoint   string
	Token      string
	Deployment string
	APIVersion string
	HTTPClient *http.Client
}

// AzureClient streams chat completions from an Azure OpenAI deployment.
type AzureClient struct {
	client     *openai.Client
	endpoint   string
	deployment string
}

func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("azure endpoint is required")
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("azure api key is required")
	}
	deployment := strings.TrimSpace(cfg.Deployment)
	if deployment == "" {
		return nil, errors.New("azure deployment is required")
	}

	config := openai.DefaultAzureConfig(token, endpoint)
	config.APIVersion = DefaultAzureAPIVersion
	if v := strings.TrimSpace(cfg.APIVersion); v != "" {
		config.APIVersion = v
	}
	// The request model is already the deployment name.
	config.AzureModelMapperFunc = func(model string) string {
		return model
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}
	return &AzureClient{
		client:     openai.NewClientWithConfig(config),
		endpoint:   endpoint,
		deployment: deployment,
	}, nil
}

func (c *AzureClient) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.deployment
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		Temperature: wireTemperature(req.Temperature),
	})
	if err != nil {
		return nil, c.classify(err)
	}
	return &azureStream{stream: stream, classify: c.classify}, nil
}

func (c *AzureClient) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		inner := ""
		if apiErr.InnerError != nil {
			inner = apiErr.InnerError.Code
		}
		if isContentFilterCode(code, inner) {
			return &ContentFilterError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
		}
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Code: code, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return classifyTransport(c.endpoint, err)
}

// wireTemperature works around the SDK dropping a zero temperature through
// omitempty, which would let the service fall back to its own default.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

type azureStream struct {
	stream   *openai.ChatCompletionStream
	classify func(error) error
}

func (s *azureStream) Recv() (Chunk, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return Chunk{}, io.EOF
	}
	if err != nil {
		return Chunk{}, s.classify(err)
	}
	return chunkFromOpenAI(resp), nil
}

func (s *azureStream) Close() error {
	return s.stream.Close()
}

func chunkFromOpenAI(resp openai.ChatCompletionStreamResponse) Chunk {
	chunk := Chunk{ID: resp.ID, Model: resp.Model}
	for _, choice := range resp.Choices {
		chunk.Choices = append(chunk.Choices, Choice{
			Index:        choice.Index,
			FinishReason: string(choice.FinishReason),
			Delta: &Delta{
				Role:    choice.Delta.Role,
				Content: choice.Delta.Content,
			},
		})
	}
	return chunk
}
