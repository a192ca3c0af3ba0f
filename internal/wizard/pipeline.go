package wizard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/esnunes/codewizard/internal/llm"
	"github.com/esnunes/codewizard/internal/models"
	"github.com/esnunes/codewizard/internal/prompt"
)

// Pipeline renders prompts and sends them to the completion backend. Each
// call makes a single attempt bounded by Timeout.
type Pipeline struct {
	completer llm.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

func NewPipeline(completer llm.Completer, timeout time.Duration, logger *zap.Logger) *Pipeline {
	return &Pipeline{completer: completer, timeout: timeout, logger: logger}
}

// AnalyzeInitial explains a freshly submitted piece of code.
func (p *Pipeline) AnalyzeInitial(ctx context.Context, code string) (string, error) {
	return p.run(ctx, prompt.InitialAnalysis, prompt.Inputs{Code: code})
}

// AnalyzeFollowUp answers question about code, quoting recent as context.
func (p *Pipeline) AnalyzeFollowUp(ctx context.Context, code, question string, recent []models.Message) (string, error) {
	return p.run(ctx, prompt.FollowUp, prompt.Inputs{Code: code, Question: question, Context: recent})
}

// AnswerGeneral answers a programming question without any code.
func (p *Pipeline) AnswerGeneral(ctx context.Context, question string) (string, error) {
	return p.run(ctx, prompt.GeneralQuestion, prompt.Inputs{Question: question})
}

func (p *Pipeline) run(ctx context.Context, kind prompt.Kind, in prompt.Inputs) (string, error) {
	text, err := prompt.Render(kind, in)
	if err != nil {
		var missing *prompt.MissingInputError
		if errors.As(err, &missing) {
			return "", validation(string(missing.Input), "Please enter some "+string(missing.Input)+" first.", err)
		}
		return "", err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := p.completer.Complete(ctx, llm.Request{Prompt: text})
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		p.logger.Error("completion backend not configured", zap.Stringer("kind", kind))
		return "", &ConfigurationError{Err: err}
	case err != nil:
		p.logger.Warn("completion failed", zap.Stringer("kind", kind), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", &UpstreamError{Kind: kind, Err: err}
	case out == "":
		p.logger.Warn("completion returned no content", zap.Stringer("kind", kind))
		return "", &UpstreamError{Kind: kind, Err: llm.ErrEmptyCompletion}
	}

	p.logger.Info("completion succeeded", zap.Stringer("kind", kind), zap.Duration("elapsed", time.Since(start)), zap.Int("response_len", len(out)))
	return out, nil
}
