// Package enrich asks a chat model for plausible wrong answers and short
// hints for each question. Records are sent in batches and the replies are
// merged back by question number.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/civicsprep/internal/cache"
	"github.com/hyperifyio/civicsprep/internal/llm"
	"github.com/hyperifyio/civicsprep/internal/question"
)

// ErrEmptyReply is returned when the model answers without content.
var ErrEmptyReply = errors.New("empty model reply")

// ErrCacheMiss is returned in cache-only mode when a batch is not cached.
var ErrCacheMiss = errors.New("reply not cached")

const (
	defaultBatchSize   = 10
	defaultMaxAttempts = 3
	defaultTemperature = 0.7
)

// Enricher fills IncorrectAnswers and Hint on enriched records.
type Enricher struct {
	Client llm.Client
	Model  string
	// Cache stores raw replies keyed by model and prompt.
	Cache *cache.ReplyCache
	// CacheOnly fails with ErrCacheMiss instead of calling the model.
	CacheOnly bool
	// BatchSize is the number of questions per request. Zero means 10.
	BatchSize int
	// MaxAttempts includes the first call. Zero means 3.
	MaxAttempts int
	// Temperature zero means 0.7.
	Temperature float32
	// DistractorPrompt and HintPrompt override the system prompts.
	DistractorPrompt string
	HintPrompt       string

	sleep func(ctx context.Context, d time.Duration) error
}

// Wrap converts records into enriched records with empty enrichment fields.
func Wrap(list []question.Record) []question.Enriched {
	out := make([]question.Enriched, len(list))
	for i, r := range list {
		out[i] = question.Enriched{Record: r.Normalize(), IncorrectAnswers: []string{}}
	}
	return out
}

// AddDistractors sets IncorrectAnswers on every record the model answered.
func (e *Enricher) AddDistractors(ctx context.Context, list []question.Enriched) error {
	return e.run(ctx, list, e.distractorPrompt(), "Generate incorrect answers for these questions:", func(idx map[int]int, raw []byte) (int, error) {
		var reply distractorReply
		if err := decodeReply(raw, &reply); err != nil {
			return 0, err
		}
		merged := 0
		for _, set := range reply.Answers {
			i, ok := idx[set.QuestionNumber]
			if !ok {
				continue
			}
			list[i].IncorrectAnswers = cleanList(set.IncorrectAnswers)
			merged++
		}
		return merged, nil
	})
}

// AddHints sets Hint on every record the model answered.
func (e *Enricher) AddHints(ctx context.Context, list []question.Enriched) error {
	return e.run(ctx, list, e.hintPrompt(), "Generate hints for these questions:", func(idx map[int]int, raw []byte) (int, error) {
		var reply hintReply
		if err := decodeReply(raw, &reply); err != nil {
			return 0, err
		}
		merged := 0
		for _, h := range reply.Hints {
			i, ok := idx[h.QuestionNumber]
			if !ok {
				continue
			}
			list[i].Hint = strings.TrimSpace(h.Hint)
			merged++
		}
		return merged, nil
	})
}

type mergeFunc func(idx map[int]int, raw []byte) (int, error)

func (e *Enricher) run(ctx context.Context, list []question.Enriched, system, lead string, merge mergeFunc) error {
	if e.Client == nil && !e.CacheOnly {
		return errors.New("enricher not configured: no client")
	}
	if strings.TrimSpace(e.Model) == "" {
		return errors.New("enricher not configured: no model")
	}
	size := e.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	batches := (len(list) + size - 1) / size
	for b := 0; b < batches; b++ {
		lo, hi := b*size, min((b+1)*size, len(list))
		batch := list[lo:hi]
		idx := make(map[int]int, len(batch))
		for i, q := range batch {
			idx[q.Number] = lo + i
		}
		user := lead + "\n\n" + formatBatch(batch)
		raw, err := e.complete(ctx, system, user)
		if err != nil {
			return fmt.Errorf("batch %d of %d: %w", b+1, batches, err)
		}
		n, err := merge(idx, raw)
		if err != nil {
			return fmt.Errorf("batch %d of %d: %w", b+1, batches, err)
		}
		log.Info().Int("batch", b+1).Int("of", batches).Int("merged", n).Int("size", len(batch)).Msg("enrichment batch done")
	}
	return nil
}

// complete returns the raw reply content, consulting the cache first and
// retrying failed calls with exponential backoff.
func (e *Enricher) complete(ctx context.Context, system, user string) ([]byte, error) {
	key := cache.ReplyKey(e.Model, system+"\n\n"+user)
	if e.Cache != nil {
		if raw, ok, _ := e.Cache.Get(ctx, key); ok {
			log.Debug().Str("key", key[:12]).Msg("model reply served from cache")
			return raw, nil
		}
	}
	if e.CacheOnly {
		return nil, ErrCacheMiss
	}

	temp := e.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}
	req := openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature:    temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := e.wait(ctx, backoff(i)); err != nil {
				return nil, err
			}
		}
		resp, err := e.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", i+1).Msg("model call failed")
			continue
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			lastErr = ErrEmptyReply
			continue
		}
		log.Debug().
			Str("model", resp.Model).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("model reply")
		raw := []byte(resp.Choices[0].Message.Content)
		if e.Cache != nil {
			if err := e.Cache.Save(ctx, key, raw); err != nil {
				log.Warn().Err(err).Msg("reply cache save failed")
			}
		}
		return raw, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// backoff doubles from one second and caps at one minute.
func backoff(attempt int) time.Duration {
	d := time.Second << (attempt - 1)
	if d > time.Minute || d <= 0 {
		return time.Minute
	}
	return d
}

func (e *Enricher) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// decodeReply parses a JSON reply, tolerating a Markdown code fence.
func decodeReply(raw []byte, v any) error {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
