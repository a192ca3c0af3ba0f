package prompt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esnunes/codewizard/internal/models"
)

func TestRender_InitialAnalysis(t *testing.T) {
	out, err := Render(InitialAnalysis, Inputs{Code: "print(1)"})
	require.NoError(t, err)

	assert.Contains(t, out, "```\nprint(1)\n```")
	for i, section := range []string{"Overview", "Key components", "programming concepts", "Performance", "Security", "improvements"} {
		assert.Contains(t, out, section)
		assert.Contains(t, out, fmt.Sprintf("%d. ", i+1))
	}
	assert.NotContains(t, out, "Question:")
}

func TestRender_FollowUpEmbedsContext(t *testing.T) {
	ctx := []models.Message{
		{Role: models.RoleUser, Content: "Please analyze this code."},
		{Role: models.RoleAssistant, Content: "This prints 1."},
		{Role: models.RoleUser, Content: "Why?"},
	}

	out, err := Render(FollowUp, Inputs{Code: "print(1)", Question: "Is it fast?", Context: ctx})
	require.NoError(t, err)

	assert.Contains(t, out, "print(1)")
	assert.Contains(t, out, "Question: Is it fast?")
	assert.Contains(t, out, "Previous context:\nuser: Please analyze this code.\nassistant: This prints 1.\nuser: Why?\n")
	assert.Contains(t, out, "examples where applicable.\nUse emojis", "follow-up carries no numbered list")
}

func TestRender_GeneralOmitsCode(t *testing.T) {
	out, err := Render(GeneralQuestion, Inputs{Code: "SECRET_CODE", Question: "What is a closure?"})
	require.NoError(t, err)

	assert.Contains(t, out, "Question: What is a closure?")
	assert.NotContains(t, out, "SECRET_CODE")
	assert.NotContains(t, out, "```")
	assert.NotContains(t, out, "Previous context")
	assert.NotContains(t, out, "1. ")
	assert.Contains(t, out, "examples where applicable.\nUse emojis")
}

func TestRender_Deterministic(t *testing.T) {
	in := Inputs{Code: "x = 1", Question: "q", Context: []models.Message{{Role: models.RoleUser, Content: "c"}}}
	for _, kind := range []Kind{InitialAnalysis, FollowUp, GeneralQuestion} {
		a, err := Render(kind, in)
		require.NoError(t, err)
		b, err := Render(kind, in)
		require.NoError(t, err)
		assert.Equal(t, a, b, kind.String())
	}
}

func TestRender_MissingInput(t *testing.T) {
	tests := []struct {
		kind Kind
		in   Inputs
		want Input
	}{
		{InitialAnalysis, Inputs{Code: "   "}, InputCode},
		{FollowUp, Inputs{Question: "q"}, InputCode},
		{FollowUp, Inputs{Code: "x"}, InputQuestion},
		{GeneralQuestion, Inputs{Code: "x"}, InputQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+string(tt.want), func(t *testing.T) {
			_, err := Render(tt.kind, tt.in)
			var missing *MissingInputError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tt.want, missing.Input)
			assert.Equal(t, tt.kind, missing.Kind)
		})
	}
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render(Kind(42), Inputs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Kind(42)")
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "user: a\nassistant: b", FormatContext([]models.Message{
		{Role: models.RoleUser, Content: "a"},
		{Role: models.RoleAssistant, Content: "b"},
	}))
}

func TestRequired(t *testing.T) {
	assert.Equal(t, []Input{InputCode}, Required(InitialAnalysis))
	assert.Equal(t, []Input{InputCode, InputQuestion}, Required(FollowUp))
	assert.Equal(t, []Input{InputQuestion}, Required(GeneralQuestion))
}
