package enrich

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/civicsprep/internal/question"
)

const distractorSystem = `You generate incorrect answers for multiple-choice civics questions.
Reply with a single JSON object of the form
{"answers":[{"question_number":<int>,"incorrect_answers":[<string>,...]}]}.
For each question:
- Generate 3 incorrect answers that seem plausible but are factually wrong.
- Keep them distinct from each other and from the correct answers; do not rephrase a correct answer.
- Avoid joke answers and completely unrealistic options.
- Prefer common misconceptions.`

const hintSystem = `You write hints for civics test questions.
Reply with a single JSON object of the form
{"hints":[{"question_number":<int>,"hint":<string>}]}.
For each question:
- Write one concise hint that guides toward the answer without stating or rephrasing it.
- Add historical context where it helps.
- Keep hints under 100 characters when possible.
- Never mislead; when unsure, a rhyme with the answer is acceptable.`

type distractorReply struct {
	Answers []struct {
		QuestionNumber   int      `json:"question_number"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"answers"`
}

type hintReply struct {
	Hints []struct {
		QuestionNumber int    `json:"question_number"`
		Hint           string `json:"hint"`
	} `json:"hints"`
}

func (e *Enricher) distractorPrompt() string {
	if strings.TrimSpace(e.DistractorPrompt) != "" {
		return e.DistractorPrompt
	}
	return distractorSystem
}

func (e *Enricher) hintPrompt() string {
	if strings.TrimSpace(e.HintPrompt) != "" {
		return e.HintPrompt
	}
	return hintSystem
}

func formatBatch(batch []question.Enriched) string {
	parts := make([]string, 0, len(batch))
	for _, q := range batch {
		parts = append(parts, fmt.Sprintf("Question %d: %s\nCorrect answer(s): %s",
			q.Number, q.Text, strings.Join(q.Answers, ", ")))
	}
	return strings.Join(parts, "\n\n")
}
