package llm

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/raphaelgruber/ravan/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

func newBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return &langchainBackend{llm: model}, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLMBaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return &langchainBackend{llm: model}, nil

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return &langchainBackend{llm: model}, nil

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err := bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return &langchainBackend{llm: model}, nil

	case config.ProviderOpenAICompatible:
		if cfg.LLMBaseURL == "" {
			return nil, fmt.Errorf("base URL required for %s provider", cfg.LLMProvider)
		}
		client := openaigo.NewClient(
			option.WithBaseURL(cfg.LLMBaseURL),
			option.WithAPIKey(cfg.OpenAIAPIKey),
			option.WithMaxRetries(0),
		)
		return &openAICompatBackend{client: client, model: cfg.LLMModel}, nil

	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("Gemini API key required")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return &geminiBackend{client: client, model: cfg.LLMModel}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// langchainBackend serves every provider langchaingo supports.
type langchainBackend struct {
	llm llms.Model
}

func (b *langchainBackend) Generate(ctx context.Context, req Request) (string, Usage, error) {
	response, err := b.llm.GenerateContent(ctx, langchainMessages(req), langchainOptions(req)...)
	if err != nil {
		return "", Usage{}, err
	}
	if len(response.Choices) == 0 {
		return "", Usage{}, nil
	}
	choice := response.Choices[0]
	return choice.Content, usageFromGenerationInfo(choice.GenerationInfo), nil
}

func (b *langchainBackend) Stream(ctx context.Context, req Request, onChunk func(string)) (Usage, error) {
	opts := append(langchainOptions(req), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		onChunk(string(chunk))
		return nil
	}))
	response, err := b.llm.GenerateContent(ctx, langchainMessages(req), opts...)
	if err != nil {
		return Usage{}, err
	}
	if len(response.Choices) == 0 {
		return Usage{}, nil
	}
	return usageFromGenerationInfo(response.Choices[0].GenerationInfo), nil
}

func langchainMessages(req Request) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.User))
}

func langchainOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

// usageFromGenerationInfo reads token counts; key names differ per provider.
func usageFromGenerationInfo(info map[string]any) Usage {
	return Usage{
		InputTokens:  firstInt(info, "PromptTokens", "InputTokens", "input_tokens"),
		OutputTokens: firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens"),
	}
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// openAICompatBackend talks to any endpoint implementing the OpenAI chat API.
type openAICompatBackend struct {
	client openaigo.Client
	model  string
}

func (b *openAICompatBackend) params(req Request) openaigo.ChatCompletionNewParams {
	messages := make([]openaigo.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openaigo.SystemMessage(req.System))
	}
	messages = append(messages, openaigo.UserMessage(req.User))

	params := openaigo.ChatCompletionNewParams{
		Model:    openaigo.ChatModel(b.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openaigo.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaigo.Int(int64(req.MaxTokens))
	}
	return params
}

func (b *openAICompatBackend) Generate(ctx context.Context, req Request) (string, Usage, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(req))
	if err != nil {
		return "", Usage{}, err
	}
	usage := Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	if len(resp.Choices) == 0 {
		return "", usage, nil
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (b *openAICompatBackend) Stream(ctx context.Context, req Request, onChunk func(string)) (Usage, error) {
	stream := b.client.Chat.Completions.NewStreaming(ctx, b.params(req))
	defer stream.Close()

	var usage Usage
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			usage = Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}
	return usage, stream.Err()
}

// geminiBackend uses the Google GenAI SDK.
type geminiBackend struct {
	client *genai.Client
	model  string
}

func (b *geminiBackend) config(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

func (b *geminiBackend) Generate(ctx context.Context, req Request) (string, Usage, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.User), b.config(req))
	if err != nil {
		return "", Usage{}, err
	}
	return resp.Text(), geminiUsage(resp), nil
}

func (b *geminiBackend) Stream(ctx context.Context, req Request, onChunk func(string)) (Usage, error) {
	var usage Usage
	for resp, err := range b.client.Models.GenerateContentStream(ctx, b.model, genai.Text(req.User), b.config(req)) {
		if err != nil {
			return usage, err
		}
		if text := resp.Text(); text != "" {
			onChunk(text)
		}
		if u := geminiUsage(resp); u.InputTokens > 0 || u.OutputTokens > 0 {
			usage = u
		}
	}
	return usage, nil
}

func geminiUsage(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	}
}
