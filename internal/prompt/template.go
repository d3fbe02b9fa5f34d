package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Templates rendered with Render.
const (
	ChatSystemTemplate = "{{system_prompt}}\n\nContext from knowledge base:\n{{context}}"

	RewriteSystemMessage = "You rewrite system prompts to improve compliance."
	RewriteTemplate      = "현재 프롬프트:\n{{current}}\n\n개선 사유: {{rationale}}{{target}}\n\n개선된 프롬프트를 제공하세요."
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces {{variable}} placeholders in a single pass, so substituted values
// containing braces are never expanded again.
func Render(template string, vars map[string]string) (string, error) {
	if missing := missingVars(template, vars); len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// ExtractVariables returns the distinct placeholder names in order of first use.
func ExtractVariables(template string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range variablePattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func missingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
