package embedding

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

func TestPrepareTextTruncation(t *testing.T) {
	short := "a short text"
	assert.Equal(t, short, PrepareText(short, 100))

	long := strings.Repeat("x", 1000)
	got := PrepareText(long, 10)
	assert.Len(t, got, 40)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestPrepareTextTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hello", PrepareText("  hello \n", 100))
}

func TestLocalProviderDeterministic(t *testing.T) {
	p := newLocalProvider(logger.NewNop())
	ctx := context.Background()

	a, err := p.Embed(ctx, "indie rock playlist for late nights")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "indie rock playlist for late nights")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, p.Dimensions())

	c, err := p.Embed(ctx, "slow cooker chili recipe")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestLocalProviderUnitNorm(t *testing.T) {
	p := newLocalProvider(logger.NewNop())
	vec, err := p.Embed(context.Background(), "some arbitrary text with several tokens")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalProviderEmptyText(t *testing.T) {
	p := newLocalProvider(logger.NewNop())
	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, localDims)
}

func TestLocalProviderBatchMatchesSingle(t *testing.T) {
	p := newLocalProvider(logger.NewNop())
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestBuildItemTextIncludesMetadata(t *testing.T) {
	item := &content.Item{
		ID:           content.ItemID("soundgraph", "t1"),
		Domain:       content.DomainMusic,
		Title:        "Midnight Drive",
		Description:  "A synthwave single.",
		Topics:       datatypes.NewJSONSlice([]string{"synthwave", "electronic"}),
		Source:       "soundgraph",
		SourceItemID: "t1",
	}
	require.NoError(t, item.SetMetadata(&content.MusicMetadata{
		Artist: "Neon Harbor",
		Album:  "City Lights",
		Genre:  "synthwave",
	}))

	text := BuildItemText(item)
	assert.Contains(t, text, "Midnight Drive")
	assert.Contains(t, text, "A synthwave single.")
	assert.Contains(t, text, "synthwave, electronic")
	assert.Contains(t, text, "Neon Harbor")
	assert.Contains(t, text, "City Lights")
}

func TestNewProviderUnknownName(t *testing.T) {
	_, err := NewProvider("quantum", logger.NewNop())
	assert.Error(t, err)
}

func TestNewProviderLocal(t *testing.T) {
	p, err := NewProvider(ProviderLocal, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, p.Name())
	assert.Equal(t, localDims, p.Dimensions())
	assert.NoError(t, p.Validate(context.Background()))
}
