package compliance

import (
	"fmt"
	"strings"
)

const judgeTemplate = `Analyze if the assistant's response follows each guideline STRICTLY.

IMPORTANT RULES:
- If a guideline requires something (e.g., "use Chinese"), check if that thing is ACTUALLY PRESENT in the response
- If you cannot find CONCRETE EVIDENCE in the response, set followed=false
- Be STRICT: absence of required elements means the guideline was NOT followed
- Extract exact quotes as evidence whenever possible
- Write the "explanation" field in %[1]s

GUIDELINES:
%[2]s

USER MESSAGE:
"%[3]s"

ASSISTANT RESPONSE:
"%[4]s"

For each guideline, determine if it was followed.
Return a JSON object with a "results" array containing one entry per guideline IN ORDER:
{
  "results": [
    {"guideline_index": 1, "followed": true, "explanation": "...", "evidence": "exact quote"},
    {"guideline_index": 2, "followed": false, "explanation": "...", "evidence": null}
  ]
}

Analyze each guideline carefully. Write the explanation in %[1]s.
If no evidence exists for a required element, set followed=false.`

const extractTemplate = `Extract specific guidelines from this system prompt.

System prompt:
"%s"

Return ONLY a JSON object with a "guidelines" array containing each guideline as a string.
Each guideline should be a clear, actionable instruction.

Example output:
{"guidelines": ["Respond in Chinese language", "Do not express emotions", "Be concise"]}

Now extract guidelines from the given system prompt:`

func buildJudgePrompt(locale string, guidelines []string, userMessage, response string) string {
	var list strings.Builder
	for i, g := range guidelines {
		fmt.Fprintf(&list, "%d. %s\n", i+1, g)
	}
	return fmt.Sprintf(judgeTemplate, locale, strings.TrimRight(list.String(), "\n"), userMessage, response)
}

func buildExtractPrompt(systemPrompt string) string {
	return fmt.Sprintf(extractTemplate, systemPrompt)
}

// stripCodeFence removes a surrounding markdown code fence some models add around JSON.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
