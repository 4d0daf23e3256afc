// Package ai turns a senior's free-text reply into structured check-in
// answers using an OpenAI-compatible chat completion endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hray3182/lifeline-checkin/internal/models"
)

// ErrNoResponse is returned when the endpoint answers without any choice.
var ErrNoResponse = errors.New("ai: no response")

type Client struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

func (c *Client) SetModel(model string) {
	c.model = model
}

// Extraction is the model's reading of one message.
type Extraction struct {
	// IsCheckIn is true when the message reports on the sender's wellbeing
	// and should be recorded as a check-in.
	IsCheckIn bool           `json:"is_check_in"`
	Answers   models.Answers `json:"answers"`
	// Reply is a short friendly answer in Traditional Chinese.
	Reply       string `json:"reply"`
	RawResponse string `json:"-"`
}

const systemPromptTemplate = `你是 LifeLine 的關懷助理，負責閱讀長輩傳來的訊息，判斷是否為報平安，並整理成結構化的回答。

當前時間: %s

欄位說明：
- is_check_in: 訊息是否在回報自己的近況（例如「我很好」、「剛吃完藥」、「昨晚睡不好」）。閒聊或提問設為 false。
- answers.mood: 心情，例如 好、普通、不好。沒提到請留空字串。
- answers.sleep: 睡眠狀況，例如 好、普通、不好。沒提到請留空字串。
- answers.energy: 精神體力，例如 好、普通、累。沒提到請留空字串。
- answers.medication: 服藥狀況，例如 已服用、未服用。沒提到請留空字串。
- reply: 給長輩的一句溫暖回覆，使用繁體中文，不超過 40 字。

重要規則：
1. 只根據訊息內容填寫，不要猜測沒有提到的欄位。
2. 訊息提到身體不適或緊急狀況時，reply 應提醒可以使用 /sos 求救。`

func (c *Client) systemPrompt() string {
	return fmt.Sprintf(systemPromptTemplate, c.now().Format("2006-01-02 15:04 (Monday)"))
}

// JSON Schema for structured output
var extractionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"is_check_in": {
			"type": "boolean",
			"description": "Whether the message reports the sender's own wellbeing"
		},
		"answers": {
			"type": "object",
			"properties": {
				"mood": {"type": "string"},
				"sleep": {"type": "string"},
				"energy": {"type": "string"},
				"medication": {"type": "string"}
			},
			"required": ["mood", "sleep", "energy", "medication"],
			"additionalProperties": false
		},
		"reply": {
			"type": "string",
			"description": "Short friendly reply in Traditional Chinese"
		}
	},
	"required": ["is_check_in", "answers", "reply"],
	"additionalProperties": false
}`)

// Extract classifies text and pulls out any check-in answers.
func (c *Client) Extract(ctx context.Context, text string) (*Extraction, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.systemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "check_in",
				Schema: extractionSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoResponse
	}

	content := resp.Choices[0].Message.Content
	ext := &Extraction{RawResponse: content}

	if err := json.Unmarshal([]byte(content), ext); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	ext.Answers = normalize(ext.Answers)
	return ext, nil
}

// ExtractAnswers returns only the structured answers found in text.
func (c *Client) ExtractAnswers(ctx context.Context, text string) (*models.Answers, error) {
	ext, err := c.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	return &ext.Answers, nil
}

func normalize(a models.Answers) models.Answers {
	return models.Answers{
		Mood:       strings.TrimSpace(a.Mood),
		Sleep:      strings.TrimSpace(a.Sleep),
		Energy:     strings.TrimSpace(a.Energy),
		Medication: strings.TrimSpace(a.Medication),
	}
}
