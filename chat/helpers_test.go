package chat

import (
	"context"
	"io"
	"sync"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/finalize"
)

type reply struct {
	content   *string
	reasoning *string
	err       error
}

type fakeBackend struct {
	mu        sync.Mutex
	replies   []reply
	calls     [][]finalize.Message
	params    []finalize.Params
	models    []string
	listErr   error
	maxTokens int
}

func (f *fakeBackend) ChatCompletion(ctx context.Context, model string, messages []finalize.Message, params finalize.Params) (*finalize.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]finalize.Message(nil), messages...))
	f.params = append(f.params, params)
	r := reply{content: str("ok")}
	if len(f.replies) > 0 {
		r = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &finalize.Response{Content: r.content, Reasoning: r.reasoning, ModelID: model, Raw: []byte(`{"id":"x","model":"` + model + `"}`)}, nil
}

func (f *fakeBackend) ListModels(ctx context.Context) ([]string, error) {
	return f.models, f.listErr
}

func (f *fakeBackend) ProbeChatCompletion(ctx context.Context, model string) (bool, error) {
	return true, nil
}

func (f *fakeBackend) MaxTokensFor(ctx context.Context, model string, fallback int) int {
	if f.maxTokens > 0 {
		return f.maxTokens
	}
	return fallback
}

type fakePrompter struct {
	texts   []string
	secrets []string
	pick    int
	labels  []string
}

func (p *fakePrompter) Text(label, def string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.texts) == 0 {
		return def, nil
	}
	v := p.texts[0]
	p.texts = p.texts[1:]
	if v == "" {
		return def, nil
	}
	return v, nil
}

func (p *fakePrompter) Secret(label string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.secrets) == 0 {
		return "", io.ErrUnexpectedEOF
	}
	v := p.secrets[0]
	p.secrets = p.secrets[1:]
	return v, nil
}

func (p *fakePrompter) Select(label string, options []string, def string) (string, error) {
	p.labels = append(p.labels, label)
	return options[p.pick], nil
}

type lines struct {
	items []string
}

func (l *lines) ReadLine(prompt string) (string, error) {
	if len(l.items) == 0 {
		return "", io.EOF
	}
	v := l.items[0]
	l.items = l.items[1:]
	return v, nil
}

type saved struct {
	all []am.UserSettings
}

func (s *saved) save(settings am.UserSettings) error {
	s.all = append(s.all, settings)
	return nil
}

func str(s string) *string { return &s }
