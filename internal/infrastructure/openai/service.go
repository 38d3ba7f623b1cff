package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/medicman/assist/internal/config"
	"github.com/medicman/assist/internal/domain/chat"
	"github.com/medicman/assist/internal/domain/diagnosis"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const followUpSystemPrompt = `You are a medical intake assistant. Given a ` +
	`patient's symptom description, produce clarifying follow-up questions ` +
	`that a doctor would ask before forming a diagnosis. Respond with a ` +
	`plain bullet list, one question per line, each line starting with "- ". ` +
	`Ask between three and six questions.`

const diagnosisSystemPrompt = `You are a careful medical assistant. Based on ` +
	`the patient summary you receive, respond with a single JSON object with ` +
	`exactly these keys: diseaseName (string), diseaseSummary (string), ` +
	`whyYouHaveThis (string), whatToDoFirst (string), dangerSigns (array of ` +
	`strings), lifestyleChanges (array of strings), medicines (array of ` +
	`objects with name, purpose, how_it_works, dosage (object mapping age ` +
	`group to dose), pros, cons, when_not_to_take, age_restriction). ` +
	`Always recommend seeing a licensed doctor for confirmation.`

const chatSystemPrompt = `You are a friendly medical assistant chatting with ` +
	`a patient. Answer their health questions clearly and briefly, and advise ` +
	`seeing a doctor when symptoms sound serious.`

type Service struct {
	mu          sync.RWMutex
	client      *openai.Client
	model       string
	visionModel string
}

// NewService builds the LLM collaborator. Returns nil when no API key is
// configured; the caller treats the service as required.
func NewService() *Service {
	log.Info().Msg("Initialising OpenAI service")
	key := config.GetOpenAIKey()

	if key == "" {
		log.Warn().Msg("OpenAI service not configured - OPENAI_KEY missing")
		return nil
	}

	return &Service{
		client:      openai.NewClient(key),
		model:       config.GetOpenAIModel(),
		visionModel: config.GetOpenAIVisionModel(),
	}
}

// GenerateFollowUps asks the model for clarifying questions about the
// reported symptoms and parses the bullet list it returns.
func (s *Service) GenerateFollowUps(ctx context.Context, symptoms string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: followUpSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: symptoms},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate follow-up questions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response choices returned")
	}

	questions := parseBulletList(resp.Choices[0].Message.Content)
	log.Debug().Int("count", len(questions)).Msg("Parsed follow-up questions")
	return questions, nil
}

// GenerateDiagnosis turns the final prompt into a structured diagnosis
// record. Fields the model omits stay at their zero values.
func (s *Service) GenerateDiagnosis(ctx context.Context, finalPrompt string) (*diagnosis.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: diagnosisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: finalPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate diagnosis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response choices returned")
	}

	var record diagnosis.Record
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &record); err != nil {
		return nil, fmt.Errorf("failed to decode diagnosis payload: %w", err)
	}

	return &record, nil
}

// StreamAnswer streams a conversational reply to the latest user message,
// invoking emit for every text fragment in arrival order.
func (s *Service) StreamAnswer(ctx context.Context, history []chat.Message, message string, emit func(fragment string) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: chatSystemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("completion stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		if err := emit(fragment); err != nil {
			return err
		}
	}
}

// Transcribe converts uploaded audio to text with Whisper.
func (s *Service) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

// AnalyzeImage sends the patient's photo alongside their transcribed
// complaint to the vision model and returns the diagnosis text.
func (s *Service) AnalyzeImage(ctx context.Context, query string, image []byte, mimeType string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: query},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Synthesize converts the diagnosis text into spoken audio.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.VoiceAlloy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return audio, nil
}

// parseBulletList extracts "- " prefixed lines, mirroring the intake
// pipeline's expected question format.
func parseBulletList(raw string) []string {
	var items []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "- "))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
