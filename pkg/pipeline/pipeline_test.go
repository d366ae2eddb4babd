package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/generation"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/ident"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
	"github.com/Mdia92/bone-framework-kiroween-edition/templates"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts in init and never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeService is a scripted generation.Service.
type fakeService struct {
	sop   *types.SOP
	err   error
	panic any

	mu   sync.Mutex
	reqs []generation.Request
}

func (f *fakeService) Name() string { return "fake" }

func (f *fakeService) Generate(_ context.Context, req generation.Request) (*types.SOP, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.panic != nil {
		panic(f.panic)
	}

	if f.sop == nil {
		return nil, f.err
	}

	cp := *f.sop

	return &cp, f.err
}

type funcSynthesizer func(context.Context, types.RawInput, types.Category, types.DaemonConfig) (*types.SOP, error)

func (f funcSynthesizer) Synthesize(ctx context.Context, in types.RawInput, c types.Category, cfg types.DaemonConfig) (*types.SOP, error) {
	return f(ctx, in, c, cfg)
}

type countingClassifier struct {
	category types.Category
	calls    int
}

func (c *countingClassifier) Classify(context.Context, types.RawInput) types.Category {
	c.calls++

	return c.category
}

func newRegistry(t *testing.T) *templates.Registry {
	t.Helper()

	reg, err := templates.NewRegistry(observability.DiscardLogger())
	require.NoError(t, err)

	return reg
}

func newSynth(t *testing.T, svc generation.Service) *FallbackSynthesizer {
	t.Helper()

	synth, err := NewFallbackSynthesizer(observability.DiscardLogger(), SynthesizerConfig{
		Generation: svc,
		Templates:  newRegistry(t),
		IDs:        ident.NewSequence("sop-"),
		Now:        func() time.Time { return time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	return synth
}

func category(c types.Category) *types.Category {
	return &c
}

func TestNewDefaults(t *testing.T) {
	p, err := New(observability.DiscardLogger(), Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), p.Config())

	result := p.Run(context.Background(), types.RawInput{Content: "db latency spike"}, nil)

	require.NotNil(t, result.SOP)
	assert.True(t, result.Success)
	assert.Empty(t, result.ValidationErrors)
	assert.NotNil(t, result.ValidationErrors)
	assert.Equal(t, types.CategoryIncident, result.SOP.Category)
	assert.Equal(t, types.SourceStub, result.SOP.Source)
	assert.Equal(t, types.DaemonConfig{Temperature: 0.3, Model: "gemini-2.5-flash"}, result.ConfigUsed)
}

func TestRunForcedCategory(t *testing.T) {
	classifier := &countingClassifier{category: types.CategoryIncident}

	p, err := New(observability.DiscardLogger(), Options{
		Classifier:  classifier,
		Synthesizer: newSynth(t, nil),
	})
	require.NoError(t, err)

	result := p.Run(context.Background(), types.RawInput{Content: "Role: SRE"}, category(types.CategoryOnboarding))

	require.NotNil(t, result.SOP)
	assert.Equal(t, types.CategoryOnboarding, result.SOP.Category)
	assert.Zero(t, classifier.calls, "forced category must skip classification")

	result = p.Run(context.Background(), types.RawInput{Content: "x"}, category("POLTERGEIST"))

	require.NotNil(t, result.SOP)
	assert.Equal(t, types.CategoryIncident, result.SOP.Category)
	assert.Equal(t, 1, classifier.calls)
}

func TestRunSynthesisFailures(t *testing.T) {
	tests := []struct {
		name  string
		synth funcSynthesizer
	}{
		{
			name: "error",
			synth: func(context.Context, types.RawInput, types.Category, types.DaemonConfig) (*types.SOP, error) {
				return nil, errors.New("crypt sealed")
			},
		},
		{
			name: "nil document",
			synth: func(context.Context, types.RawInput, types.Category, types.DaemonConfig) (*types.SOP, error) {
				return nil, nil
			},
		},
		{
			name: "panic",
			synth: func(context.Context, types.RawInput, types.Category, types.DaemonConfig) (*types.SOP, error) {
				panic("skeleton fell apart")
			},
		},
	}

	cfg := types.DaemonConfig{Temperature: 0.7, Model: "m"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(observability.DiscardLogger(), Options{Synthesizer: tt.synth, Config: cfg})
			require.NoError(t, err)

			var result types.PipelineResult

			require.NotPanics(t, func() {
				result = p.Run(context.Background(), types.RawInput{}, nil)
			})

			assert.Nil(t, result.SOP)
			assert.False(t, result.Success)
			assert.NotNil(t, result.ValidationErrors)
			assert.Empty(t, result.ValidationErrors)
			assert.Equal(t, cfg, result.ConfigUsed)
		})
	}
}

func TestRunValidationFailureKeepsSOP(t *testing.T) {
	synth := funcSynthesizer(func(context.Context, types.RawInput, types.Category, types.DaemonConfig) (*types.SOP, error) {
		return &types.SOP{ID: "x"}, nil
	})

	p, err := New(observability.DiscardLogger(), Options{Synthesizer: synth})
	require.NoError(t, err)

	result := p.Run(context.Background(), types.RawInput{Content: "x"}, nil)

	require.NotNil(t, result.SOP)
	assert.Equal(t, "x", result.SOP.ID)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"SOP has no steps.", "SOP missing title."}, result.ValidationErrors)
}

func TestRunWithConfigPassesConfigThrough(t *testing.T) {
	svc := &fakeService{err: generation.ErrNotConfigured}

	p, err := New(observability.DiscardLogger(), Options{Synthesizer: newSynth(t, svc)})
	require.NoError(t, err)

	maxTokens := 2048
	cfg := types.DaemonConfig{Temperature: 0.9, Model: "anthropic.claude-3-haiku", MaxTokens: &maxTokens}

	result := p.RunWithConfig(context.Background(), types.RawInput{Content: "x"}, nil, cfg)

	assert.Equal(t, cfg, result.ConfigUsed)
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, cfg, svc.reqs[0].Config)
	assert.Equal(t, "incident", svc.reqs[0].Mode)
	assert.Equal(t, "x", svc.reqs[0].RawText)
}

func TestRunNeverFails(t *testing.T) {
	p, err := New(observability.DiscardLogger(), Options{Synthesizer: newSynth(t, &fakeService{err: errors.New("down")})})
	require.NoError(t, err)

	inputs := []types.RawInput{
		{},
		{Content: ""},
		{Content: "\x00\xff not utf8"},
		{Content: "Role:\nTools Required:"},
		{Content: "a very long incident", Context: map[string]any{"priority": "high"}},
	}

	for i, input := range inputs {
		for _, forced := range []*types.Category{nil, category(types.CategoryIncident), category(types.CategoryOnboarding)} {
			t.Run(fmt.Sprintf("input-%d", i), func(t *testing.T) {
				result := p.Run(context.Background(), input, forced)

				require.NotNil(t, result.SOP)
				assert.True(t, result.Success)
				assert.Equal(t, types.SourceStub, result.SOP.Source)
			})
		}
	}
}

func TestRunConcurrent(t *testing.T) {
	p, err := New(observability.DiscardLogger(), Options{Synthesizer: newSynth(t, nil)})
	require.NoError(t, err)

	var wg sync.WaitGroup

	results := make([]types.PipelineResult, 32)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			forced := types.CategoryIncident
			if i%2 == 1 {
				forced = types.CategoryOnboarding
			}

			results[i] = p.Run(context.Background(), types.RawInput{Content: "x"}, &forced)
		}(i)
	}

	wg.Wait()

	ids := make(map[string]struct{}, len(results))

	for _, r := range results {
		require.True(t, r.Success)
		ids[r.SOP.ID] = struct{}{}
	}

	assert.Len(t, ids, len(results))
}
