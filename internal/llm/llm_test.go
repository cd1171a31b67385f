package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	reply string
}

func (s *stubGenerator) Query(_ context.Context, _ string) (string, error) {
	return s.reply, nil
}

func (s *stubGenerator) QueryStream(_ context.Context, _ string, onToken TokenFunc) (string, error) {
	if onToken != nil {
		onToken(s.reply)
	}
	return s.reply, nil
}

func TestNewGenerator_FactoryOverride(t *testing.T) {
	original := NewGenerator
	t.Cleanup(func() { NewGenerator = original })

	NewGenerator = func(opts Options) (Generator, error) {
		return &stubGenerator{reply: "stubbed"}, nil
	}

	gen, err := NewGenerator(Options{Provider: "anthropic"})
	require.NoError(t, err)
	out, err := gen.Query(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "stubbed", out)
}

func TestDefaultNewGenerator_UnknownProvider(t *testing.T) {
	_, err := defaultNewGenerator(Options{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.defaults()
	assert.Equal(t, 32768, opts.MaxTokens)
}

func TestResolveKey(t *testing.T) {
	key, err := resolveKey("explicit", "JACREF_TEST_UNSET_VAR")
	require.NoError(t, err)
	assert.Equal(t, "explicit", key)

	t.Setenv("JACREF_TEST_KEY_VAR", "from-env")
	key, err = resolveKey("", "JACREF_TEST_KEY_VAR")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	_, err = resolveKey("", "JACREF_TEST_UNSET_VAR")
	assert.Error(t, err)
}
