package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
)

const (
	MessageNoAPIKey   = "AI 기능을 사용하려면 API 키가 필요합니다."
	MessageAIFailure  = "AI 추천 주제 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."
	MessageAdviceFail = "AI 도우미가 지금 답변할 수 없습니다. 잠시 후 다시 시도해 주세요."
	maxSuggestions    = 3
)

var ErrNoAPIKey = errors.New("ai api key is not configured")

type AIClient interface {
	RefineTopic(ctx context.Context, topic string) (models.TopicSuggestions, error)
	Advise(ctx context.Context, progress models.WritingProgress, question string) (string, error)
}

// FallbackSuggestions is what the writer sees when RefineTopic failed with err.
func FallbackSuggestions(err error) models.TopicSuggestions {
	if errors.Is(err, ErrNoAPIKey) {
		return models.TopicSuggestions{RefinedTopic: MessageNoAPIKey, Suggestions: []string{}, Degraded: true}
	}
	return models.TopicSuggestions{RefinedTopic: MessageAIFailure, Suggestions: []string{}, Degraded: true}
}

func FallbackAdvice(err error) string {
	if errors.Is(err, ErrNoAPIKey) {
		return MessageNoAPIKey
	}
	return MessageAdviceFail
}

type geminiClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewGeminiClient(baseURL, model, apiKey string, timeout time.Duration, logger zerolog.Logger) AIClient {
	return &geminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var topicSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"refinedTopic": {"type": "STRING", "description": "원래 주제를 다듬은 버전입니다."},
		"suggestions": {"type": "ARRAY", "items": {"type": "STRING"}, "description": "대안으로 제시하는 3가지 새로운 주제입니다."}
	},
	"required": ["refinedTopic", "suggestions"]
}`)

const topicPrompt = `초등학교 6학년 학생이 주장하는 글(논설문)의 주제를 작성했습니다.
모든 주제는 명확한 '주장'이 드러나도록 "~해야 한다", "~하자"와 같은 서술로 끝나야 합니다. 설명하는 듯한 제목은 피해주세요.

1. 원래 주제를 더 명확하고, 흥미로우며, 논리적인 '주장'으로 다듬어 주세요.
2. 원래 주제와 관련하여, 학생들이 흥미를 가질 만한 새로운 대안 '주장' 3가지를 제안해주세요.

원래 주제: "%s"

JSON 형식으로 응답해주세요.`

const advicePrompt = `당신은 초등학교 6학년 학생의 논설문 쓰기를 돕는 친절한 선생님입니다.
답을 대신 써 주지 말고, 학생이 스스로 생각할 수 있도록 짧고 쉬운 말로 조언해 주세요.

지금까지 쓴 글:
주제: %s
서론: %s
본론:
%s
결론: %s

학생의 질문: %s`

func (c *geminiClient) RefineTopic(ctx context.Context, topic string) (models.TopicSuggestions, error) {
	if c.apiKey == "" {
		return models.TopicSuggestions{}, ErrNoAPIKey
	}

	text, err := c.generate(ctx, fmt.Sprintf(topicPrompt, topic), &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   topicSchema,
	})
	if err != nil {
		return models.TopicSuggestions{}, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return models.TopicSuggestions{}, err
	}

	var parsed struct {
		RefinedTopic string   `json:"refinedTopic"`
		Suggestions  []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.TopicSuggestions{}, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}

	if parsed.Suggestions == nil {
		parsed.Suggestions = []string{}
	}
	if len(parsed.Suggestions) > maxSuggestions {
		parsed.Suggestions = parsed.Suggestions[:maxSuggestions]
	}

	return models.TopicSuggestions{
		RefinedTopic: strings.TrimSpace(parsed.RefinedTopic),
		Suggestions:  parsed.Suggestions,
	}, nil
}

func (c *geminiClient) Advise(ctx context.Context, progress models.WritingProgress, question string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	var body strings.Builder
	for i, part := range progress.Body {
		fmt.Fprintf(&body, "%d. %s (출처: %s)\n", i+1, part.Reason, part.Source)
	}

	prompt := fmt.Sprintf(advicePrompt,
		progress.Topic, progress.Introduction, body.String(), progress.Conclusion, question)

	text, err := c.generate(ctx, prompt, nil)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

func (c *geminiClient) generate(ctx context.Context, prompt string, genCfg *generationConfig) (string, error) {
	reqBody := generateRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: genCfg,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("model", c.model).
			Msg("Gemini request failed")
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, cand := range genResp.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", errors.New("gemini returned no content")
	}

	return text.String(), nil
}

var (
	fenceOpen  = regexp.MustCompile("(?s)```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("(?s)```\\s*$")
)

// ExtractJSON returns the JSON object in an LLM reply, ignoring markdown
// fences and surrounding prose.
func ExtractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	response = fenceOpen.ReplaceAllString(response, "")
	response = fenceClose.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", errors.New("no valid JSON object found in response")
	}

	jsonStr := response[start : end+1]

	var js json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &js); err != nil {
		return "", fmt.Errorf("extracted text is not valid JSON: %w", err)
	}

	return jsonStr, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
