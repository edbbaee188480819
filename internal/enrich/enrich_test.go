package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/civicsprep/internal/cache"
	"github.com/hyperifyio/civicsprep/internal/question"
)

type scriptedClient struct {
	replies []string
	errs    []error
	reqs    []openai.ChatCompletionRequest
}

func (c *scriptedClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(c.reqs)
	c.reqs = append(c.reqs, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return openai.ChatCompletionResponse{}, c.errs[i]
	}
	content := ""
	if i < len(c.replies) {
		content = c.replies[i]
	}
	return openai.ChatCompletionResponse{
		Model: req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func sample() []question.Enriched {
	return Wrap([]question.Record{
		{Number: 1, Text: "What is the supreme law of the land?", Answers: []string{"the Constitution"}},
		{Number: 2, Text: "What does the Constitution do?", Answers: []string{"sets up the government", "defines the government"}},
	})
}

func TestAddDistractors_MergesByNumber(t *testing.T) {
	cc := &scriptedClient{replies: []string{
		`{"answers":[{"question_number":2,"incorrect_answers":["declares war"," "]},{"question_number":77,"incorrect_answers":["x"]}]}`,
	}}
	e := &Enricher{Client: cc, Model: "test-model", sleep: noSleep}
	list := sample()
	if err := e.AddDistractors(context.Background(), list); err != nil {
		t.Fatalf("distractors: %v", err)
	}
	if len(list[0].IncorrectAnswers) != 0 {
		t.Fatalf("question 1 was not answered, got %#v", list[0].IncorrectAnswers)
	}
	if len(list[1].IncorrectAnswers) != 1 || list[1].IncorrectAnswers[0] != "declares war" {
		t.Fatalf("unexpected distractors: %#v", list[1].IncorrectAnswers)
	}
	req := cc.reqs[0]
	if req.Model != "test-model" || req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("unexpected request: %+v", req)
	}
	user := req.Messages[1].Content
	if !strings.Contains(user, "Question 2: What does the Constitution do?\nCorrect answer(s): sets up the government, defines the government") {
		t.Fatalf("unexpected user message:\n%s", user)
	}
}

func TestAddHints_BatchesAndCodeFence(t *testing.T) {
	cc := &scriptedClient{replies: []string{
		"```json\n{\"hints\":[{\"question_number\":1,\"hint\":\" Written in 1787 \"}]}\n```",
		`{"hints":[{"question_number":2,"hint":"Think structure."}]}`,
	}}
	e := &Enricher{Client: cc, Model: "m", BatchSize: 1, sleep: noSleep}
	list := sample()
	if err := e.AddHints(context.Background(), list); err != nil {
		t.Fatalf("hints: %v", err)
	}
	if len(cc.reqs) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(cc.reqs))
	}
	if list[0].Hint != "Written in 1787" || list[1].Hint != "Think structure." {
		t.Fatalf("unexpected hints: %q %q", list[0].Hint, list[1].Hint)
	}
	if list[0].Number != 1 || list[1].Number != 2 {
		t.Fatalf("order changed")
	}
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	cc := &scriptedClient{
		errs:    []error{errors.New("rate limited"), nil},
		replies: []string{"", `{"hints":[]}`},
	}
	var waits []time.Duration
	e := &Enricher{Client: cc, Model: "m", sleep: func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}}
	if err := e.AddHints(context.Background(), sample()); err != nil {
		t.Fatalf("hints: %v", err)
	}
	if len(cc.reqs) != 2 || len(waits) != 1 || waits[0] != time.Second {
		t.Fatalf("expected one retry after 1s, got reqs=%d waits=%v", len(cc.reqs), waits)
	}
}

func TestComplete_GivesUpAfterMaxAttempts(t *testing.T) {
	cc := &scriptedClient{replies: []string{"", "", ""}}
	e := &Enricher{Client: cc, Model: "m", sleep: noSleep}
	err := e.AddHints(context.Background(), sample())
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
	if len(cc.reqs) != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, len(cc.reqs))
	}
}

func TestComplete_UsesReplyCache(t *testing.T) {
	rc := &cache.ReplyCache{Dir: t.TempDir()}
	cc := &scriptedClient{replies: []string{`{"hints":[{"question_number":1,"hint":"h"}]}`}}
	e := &Enricher{Client: cc, Model: "m", Cache: rc, sleep: noSleep}
	if err := e.AddHints(context.Background(), sample()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	offline := &Enricher{Model: "m", Cache: rc, CacheOnly: true}
	list := sample()
	if err := offline.AddHints(context.Background(), list); err != nil {
		t.Fatalf("cache-only run: %v", err)
	}
	if list[0].Hint != "h" {
		t.Fatalf("expected cached hint, got %q", list[0].Hint)
	}
	if err := offline.AddDistractors(context.Background(), sample()); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestRun_RequiresModel(t *testing.T) {
	e := &Enricher{Client: &scriptedClient{}}
	if err := e.AddHints(context.Background(), sample()); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := backoff(10); got != time.Minute {
		t.Fatalf("expected cap at one minute, got %v", got)
	}
}
