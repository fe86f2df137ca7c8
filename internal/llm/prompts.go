package llm

import (
	"fmt"
	"strings"

	"github.com/siderealhq/genesis/internal/domain"
)

const questionPrompt = `You are a conversational question writer for a self-reflection app.

Write ONE casual, friendly question that helps reveal whether the hidden trait
below fits the person. The question must feel like natural small talk.

HARD RULES:
- NEVER mention the trait, any technical term, or why you are asking.
- NEVER mention probabilities, hypotheses, or data.
- The question must be answerable with exactly these answer tokens: %s
- Question style: %s

Hidden trait under test: %q
Alternative traits it competes with: %s

For every answer token, estimate how strongly that answer supports or
undermines each trait as a signed confidence delta between -0.5 and 0.5.

Respond ONLY with JSON, no markdown:
{"question":"...","options":[%s],"confidence_mappings":{"<answer>":{"<trait>":0.0}}}`

func styleHint(t domain.ProbeType) string {
	switch t {
	case domain.ProbeBinaryChoice:
		return "a light either/or question"
	case domain.ProbeSlider:
		return "a how-much-do-you-agree question rated from the given tokens"
	case domain.ProbeReflection:
		return "an open reflective question whose likely answers are the given tokens"
	case domain.ProbeConfirmation:
		return "a gentle does-this-sound-like-you check"
	default:
		return "a casual question"
	}
}

func buildQuestionPrompt(req domain.QuestionRequest) string {
	quoted := make([]string, len(req.Options))
	for i, o := range req.Options {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	others := make([]string, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if c != req.SuspectedValue {
			others = append(others, c)
		}
	}
	return fmt.Sprintf(questionPrompt,
		strings.Join(req.Options, ", "),
		styleHint(req.ProbeType),
		req.SuspectedValue,
		strings.Join(others, ", "),
		strings.Join(quoted, ","),
	)
}
