package service

import (
	"github.com/tmc/langchaingo/prompts"
)

const searchSystemPrompt = `You are a legal research assistant. Extract key legal search phrases from the query.
Guidelines:
- Return only the search phrases, one per line
- Keep phrases short and focused (2-4 words)
- Focus on legal terms and concepts
- Do not include explanations

Example Input: "My neighbor threatened to harm my family"
Example Output:
criminal intimidation
threats of harm
wrongful threats`

const searchUserTemplate = `Extract key legal search phrases from this query: {{.query}}`

const responseUserTemplate = `Use these inputs to provide a targeted response:

Previous Conversation Context (for reference only):
{{.conv_context}}

Document Context:
{{.doc_context}}

Current Question: {{.query}}

Instructions:
1. Only analyze the Current Question
2. Use Previous Conversation for context only
3. Only cite {{.label}}s from Document Context
4. Include {{.language}} Language translation

Provide:
1. Legal analysis with {{.label}} X citations
2. Draft petition if needed
3. Practical next steps
4. {{.language}} Language translation of the entire response`

func newSearchPrompt() prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       searchUserTemplate,
		InputVariables: []string{"query"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

func newResponsePrompt(label, language string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       responseUserTemplate,
		InputVariables: []string{"conv_context", "doc_context", "query"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
		PartialVariables: map[string]any{
			"label":    label,
			"language": language,
		},
	}
}
