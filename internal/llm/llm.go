package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pavelanni/satsession/internal/llm/prompts"
	"github.com/pavelanni/satsession/internal/model"
)

const (
	guideMaxTokens       = 1500
	practiceMaxTokens    = 3000
	counterpartMaxTokens = 1024
)

// Client generates lesson content through an OpenAI-compatible API.
type Client struct {
	api     *openai.Client
	model   string
	limiter *rate.Limiter
}

// New creates a new LLM client. rps caps outgoing requests per second;
// zero or less means no limit.
func New(baseURL, apiKey, modelName string, rps float64) (*Client, error) {
	if err := prompts.Load(prompts.Files); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// TutorGuide writes a short teaching guide for a concept group.
func (c *Client) TutorGuide(ctx context.Context, concept string, questions []model.Question, names []string) (string, error) {
	data := prompts.GuideData{Concept: concept, Names: names}
	for _, q := range questions {
		text := q.Text
		if strings.TrimSpace(text) == "" {
			text = fmt.Sprintf("Question #%d", q.QuestionNumber)
		}
		data.Questions = append(data.Questions, prompts.QuestionLine{
			Number:  len(data.Questions) + 1,
			Text:    prompts.Sanitize(text),
			Section: string(q.Section),
		})
	}
	p, err := prompts.Build(prompts.KindGuide, data)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, p, nil, 0.7, guideMaxTokens)
}

type practiceResponse struct {
	Problems []struct {
		Text          string `json:"question_text"`
		AnswerA       string `json:"answer_a"`
		AnswerB       string `json:"answer_b"`
		AnswerC       string `json:"answer_c"`
		AnswerD       string `json:"answer_d"`
		CorrectAnswer string `json:"correct_answer"`
		Explanation   string `json:"explanation"`
		Difficulty    int    `json:"difficulty"`
	} `json:"problems"`
}

// PracticeProblems generates up to count problems for a concept, easiest
// first. sample is the original question the students missed, if known.
func (c *Client) PracticeProblems(ctx context.Context, concept string, section model.Section, sample *string, count int) ([]model.PracticeProblem, error) {
	data := prompts.PracticeData{Concept: concept, Section: string(section), Count: count}
	if sample != nil && strings.TrimSpace(*sample) != "" {
		data.Sample = prompts.Sanitize(*sample)
	}
	p, err := prompts.Build(prompts.KindPractice, data)
	if err != nil {
		return nil, err
	}
	raw, err := c.complete(ctx, p, practiceSchema, 0.7, practiceMaxTokens)
	if err != nil {
		return nil, err
	}

	var resp practiceResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &ErrInvalidResponse{Content: raw, Err: err}
	}
	if len(resp.Problems) > count {
		resp.Problems = resp.Problems[:count]
	}
	out := make([]model.PracticeProblem, 0, len(resp.Problems))
	for i, pr := range resp.Problems {
		difficulty := pr.Difficulty
		if difficulty == 0 {
			difficulty = i + 1
		}
		out = append(out, model.PracticeProblem{
			ID:            fmt.Sprintf("practice-%s-%d", concept, i),
			Text:          pr.Text,
			AnswerA:       pr.AnswerA,
			AnswerB:       pr.AnswerB,
			AnswerC:       pr.AnswerC,
			AnswerD:       pr.AnswerD,
			CorrectAnswer: model.AnswerChoice(pr.CorrectAnswer),
			Explanation:   pr.Explanation,
			Difficulty:    difficulty,
			ConceptTag:    concept,
		})
	}
	return out, nil
}

// Counterpart writes a new question testing the same skill as q. The
// question text and the answer choices are generated in two steps.
func (c *Client) Counterpart(ctx context.Context, q model.Question) (model.Counterpart, error) {
	concept := q.ConceptTag
	if concept == "" {
		concept = "unknown"
	}
	data := prompts.CounterpartData{
		Section:        string(q.Section),
		ReadingWriting: q.Section == model.SectionReadingWriting,
		Concept:        concept,
		Text:           prompts.Sanitize(q.Text),
		Answers:        answerLines(q),
		Correct:        string(q.CorrectAnswer),
	}

	p, err := prompts.Build(prompts.KindCounterpartQuestion, data)
	if err != nil {
		return model.Counterpart{}, err
	}
	raw, err := c.complete(ctx, p, counterpartQuestionSchema, 0.8, counterpartMaxTokens)
	if err != nil {
		return model.Counterpart{}, fmt.Errorf("generate question: %w", err)
	}
	var question struct {
		QuestionText string `json:"questionText"`
	}
	if err := json.Unmarshal([]byte(raw), &question); err != nil {
		return model.Counterpart{}, &ErrInvalidResponse{Content: raw, Err: err}
	}

	data.QuestionText = question.QuestionText
	p, err = prompts.Build(prompts.KindCounterpartAnswers, data)
	if err != nil {
		return model.Counterpart{}, err
	}
	raw, err = c.complete(ctx, p, counterpartAnswersSchema, 0.5, counterpartMaxTokens)
	if err != nil {
		return model.Counterpart{}, fmt.Errorf("generate answers: %w", err)
	}
	out := model.Counterpart{QuestionText: question.QuestionText}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return model.Counterpart{}, &ErrInvalidResponse{Content: raw, Err: err}
	}
	out.QuestionText = question.QuestionText
	return out, nil
}

func answerLines(q model.Question) []string {
	var lines []string
	for _, a := range []struct {
		label string
		text  string
	}{{"A", q.AnswerA}, {"B", q.AnswerB}, {"C", q.AnswerC}, {"D", q.AnswerD}} {
		if a.text != "" {
			lines = append(lines, a.label+") "+a.text)
		}
	}
	return lines
}

// complete sends one chat completion. With a schema the model is asked for
// a JSON object and the reply is validated against it.
func (c *Client) complete(ctx context.Context, p prompts.Prompt, schema *Schema, temperature float32, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limit: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature:         temperature,
		MaxCompletionTokens: maxTokens,
	}
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM response", "raw", raw)
	if raw == "" {
		return "", errors.New("LLM returned empty content")
	}
	if err := validateResponse(schema, raw); err != nil {
		return "", err
	}
	return raw, nil
}
