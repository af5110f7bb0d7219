package services

import (
	"fmt"
	"strconv"
	"strings"

	"quizforge/internal/models"
)

const (
	DefaultNumQuestions = 6
	minNumQuestions     = 1
	maxNumQuestions     = 20
)

var hebrewAliases = map[string]struct{}{
	"he":     {},
	"hebrew": {},
	"iw":     {},
	"he-il":  {},
}

// NormalizeLanguage maps arbitrary input to a supported language. It is
// total: anything not recognized as a Hebrew alias is English.
func NormalizeLanguage(raw string) models.Language {
	v := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := hebrewAliases[v]; ok {
		return models.LanguageHebrew
	}
	return models.LanguageEnglish
}

// ClampQuestionCount parses the raw question count and clamps it to [1,20].
// Non-numeric input yields the default.
func ClampQuestionCount(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = fallback
	}
	return clampInt(n, minNumQuestions, maxNumQuestions)
}

func clampInt(n, low, high int) int {
	if n < low {
		return low
	}
	if n > high {
		return high
	}
	return n
}

func languageInstructions(lang models.Language) string {
	if lang == models.LanguageHebrew {
		return "השאלות, אפשרויות הבחירה וההסברים חייבים להיות בעברית תקינה. שמור על כיווניות RTL וסימני פיסוק."
	}
	return "All questions, choices, and explanations must be in clear English."
}

// BuildPrompt renders the instruction block and the exact JSON schema
// contract for one completion call. Pure function of its inputs.
func BuildPrompt(documentText string, numQuestions int, lang models.Language) string {
	var b strings.Builder

	b.WriteString("You are generating professional monthly mission **medical multiple-choice questions (MCQs)** from input text.\n")
	b.WriteString("Audience: trained medics. Content must be accurate, unambiguous, and operationally useful.\n")
	b.WriteString("Try to refer any single key takeaway from the text.\n\n")

	b.WriteString(languageInstructions(lang))
	b.WriteString("\n\n")

	b.WriteString("Return **ONLY** a single JSON object that **exactly** matches this schema (no markdown, no code fences, no extra keys):\n\n")
	b.WriteString(`{
  "source_summary": "string, <= 400 chars concise summary of the key takeaways the questions are based on",
  "questions": [
    {
      "id": "string, unique like Q1, Q2 ...",
      "topic": "string, short (e.g., 'Air Evacuation', 'Vascular Access', 'Heat Injury', 'Airway/Neck Trauma')",
      "difficulty": "string, one of ['basic','intermediate','advanced']",
      "stem": "string, the question stem in one paragraph, <= 320 chars, no line breaks",
      "options": [
        {"label":"A","text":"string, plausible distractor or correct answer"},
        {"label":"B","text":"string"},
        {"label":"C","text":"string"},
        {"label":"D","text":"string"}
      ],
      "answer": {"label": "one of ['A','B','C','D']", "text": "string that exactly matches the chosen option text"},
      "rationale": "string, <= 300 chars, why the correct answer is correct and why others are not appropriate in this context",
      "operational_note": "string, <= 200 chars, practical field note (if applicable), else empty string",
      "safety_flags": ["array of short strings for safety-critical cues present in the question, can be empty"]
    }
  ]
}`)
	b.WriteString("\n\nHard constraints:\n")
	fmt.Fprintf(&b, "- Produce **exactly %d** questions in \"questions\" unless the content cannot support that many; never exceed %d.\n", numQuestions, numQuestions)
	b.WriteString("- Use **clear, field-proven guidance** from the text; **do not invent** protocols.\n")
	b.WriteString("- No references/citations or page numbers in the JSON.\n")
	b.WriteString("- **Do not** include any text before or after the JSON.\n")
	b.WriteString("- **Do not** include code fences, markdown, or comments.\n")

	b.WriteString("\nContent guardrails:\n")
	b.WriteString("- Prefer single-best-answer MCQs.\n")
	b.WriteString("- Options must be mutually exclusive and collectively plausible.\n")
	b.WriteString("- Avoid ambiguous wording, double negatives, or local jargon without context.\n")
	b.WriteString("- Avoid exposing the answer in the question or the options.\n")
	b.WriteString("- Do not include sensitive PII.\n")

	b.WriteString("\nHere is the source text to base your questions on:\n---\n")
	b.WriteString(documentText)
	b.WriteString("\n---\n")

	return b.String()
}
