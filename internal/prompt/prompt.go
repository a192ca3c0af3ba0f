// Package prompt renders the fixed instruction templates sent to the
// completion backend.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/esnunes/codewizard/internal/models"
)

type Kind int

const (
	InitialAnalysis Kind = iota
	FollowUp
	GeneralQuestion
)

func (k Kind) String() string {
	switch k {
	case InitialAnalysis:
		return "initial_analysis"
	case FollowUp:
		return "follow_up"
	case GeneralQuestion:
		return "general_question"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Input string

const (
	InputCode     Input = "code"
	InputQuestion Input = "question"
)

// Inputs are the values interpolated into a template. Context is only
// rendered by FollowUp.
type Inputs struct {
	Code     string
	Question string
	Context  []models.Message
}

func (in Inputs) value(i Input) string {
	switch i {
	case InputCode:
		return in.Code
	case InputQuestion:
		return in.Question
	}
	return ""
}

// MissingInputError reports a required template input left blank.
type MissingInputError struct {
	Kind  Kind
	Input Input
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s prompt requires %s", e.Kind, e.Input)
}

type spec struct {
	Required []Input
	Sections []string
	tmpl     *template.Template
}

const analysisText = `As a coding expert, analyze this code:

` + "```" + `
{{.Code}}
` + "```" + `

Provide a detailed yet engaging analysis including:
{{sections .Sections}}
Make your explanation clear, engaging, and actionable, using emojis and formatting to enhance readability.`

const followUpText = `Question about the code:
` + "```" + `
{{.Code}}
` + "```" + `

Question: {{.Question}}

Previous context:
{{.Context}}

Provide a focused, clear answer with relevant code references and examples where applicable.
Use emojis and formatting to make the explanation more engaging.`

const generalText = `Answer this programming question:
Question: {{.Question}}

Provide a clear, comprehensive answer with examples where applicable.
Use emojis and formatting to make the explanation engaging.`

var funcs = template.FuncMap{
	"sections": func(sections []string) string {
		var b strings.Builder
		for i, s := range sections {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		return b.String()
	},
}

var table = map[Kind]spec{
	InitialAnalysis: {
		Required: []Input{InputCode},
		Sections: []string{
			"🎯 Overview of what the code does",
			"🔍 Key components and their functionality",
			"💡 Notable programming concepts used",
			"⚡ Performance considerations",
			"🛡️ Security considerations if applicable",
			"✨ Potential improvements and best practices",
		},
		tmpl: template.Must(template.New("initial_analysis").Funcs(funcs).Parse(analysisText)),
	},
	FollowUp: {
		Required: []Input{InputCode, InputQuestion},
		tmpl:     template.Must(template.New("follow_up").Funcs(funcs).Parse(followUpText)),
	},
	GeneralQuestion: {
		Required: []Input{InputQuestion},
		tmpl:     template.Must(template.New("general_question").Funcs(funcs).Parse(generalText)),
	},
}

// Required lists the inputs kind needs.
func Required(kind Kind) []Input {
	return table[kind].Required
}

// Render builds the prompt for kind. The output depends only on its inputs.
func Render(kind Kind, in Inputs) (string, error) {
	sp, ok := table[kind]
	if !ok {
		return "", fmt.Errorf("unknown prompt kind %s", kind)
	}
	for _, req := range sp.Required {
		if strings.TrimSpace(in.value(req)) == "" {
			return "", &MissingInputError{Kind: kind, Input: req}
		}
	}

	var b strings.Builder
	err := sp.tmpl.Execute(&b, struct {
		Code     string
		Question string
		Context  string
		Sections []string
	}{
		Code:     in.Code,
		Question: in.Question,
		Context:  FormatContext(in.Context),
		Sections: sp.Sections,
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", kind, err)
	}
	return b.String(), nil
}

// FormatContext renders entries as "role: content" lines, oldest first.
func FormatContext(entries []models.Message) string {
	lines := make([]string, len(entries))
	for i, m := range entries {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}
