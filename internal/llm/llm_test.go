package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/esnunes/codewizard/internal/config"
)

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	oa, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "https://api.groq.com/openai/v1", oa.opts.BaseURL)
	assert.Equal(t, "mixtral-8x7b-32768", oa.opts.Model)

	cfg.LLM.Provider = config.ProviderGemini
	c, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	gc, ok := c.(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", gc.opts.Model)

	cfg.LLM.Provider = "mistral"
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_OpenAIProviderUsesOpenAIEndpoint(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CODEWIZARD_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	oa, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "sk-secret", oa.opts.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", oa.opts.BaseURL)
	assert.Equal(t, "gpt-4o-mini", oa.opts.Model)
}

func TestNew_ExplicitEndpointWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.BaseURL = "http://localhost:11434/v1"
	cfg.LLM.Model = "llama3"

	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	oa := c.(*OpenAIClient)
	assert.Equal(t, "http://localhost:11434/v1", oa.opts.BaseURL)
	assert.Equal(t, "llama3", oa.opts.Model)
}

func TestGeminiClient_NoAPIKey(t *testing.T) {
	c := NewGeminiClient(Options{Model: "gemini-2.0-flash"}, zap.NewNop())
	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Nil(t, c.client, "client must not be created without a key")
}

func TestCandidateText(t *testing.T) {
	assert.Equal(t, "", candidateText(nil))
	assert.Equal(t, "", candidateText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "This "},
				{Text: "prints 1."},
			}},
		}},
	}
	assert.Equal(t, "This prints 1.", candidateText(resp))
}
