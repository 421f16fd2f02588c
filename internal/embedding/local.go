package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

const localDims = 384

// localProvider produces deterministic vectors from token hashes. It needs no
// credentials, which makes it the default for development and for tests that
// exercise the queue and worker end to end.
type localProvider struct {
	log *logger.Logger
}

func newLocalProvider(log *logger.Logger) *localProvider {
	return &localProvider{log: log.With("provider", ProviderLocal)}
}

func (p *localProvider) Name() string    { return ProviderLocal }
func (p *localProvider) Dimensions() int { return localDims }

func (p *localProvider) Embed(_ context.Context, text string) (content.Vector, error) {
	return localVector(PrepareText(text, defaultTokenBudget)), nil
}

func (p *localProvider) EmbedBatch(ctx context.Context, texts []string) ([]content.Vector, error) {
	out := make([]content.Vector, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *localProvider) Validate(context.Context) error { return nil }

// localVector hashes each whitespace token into a bucket and L2-normalizes
// the result, so identical text always yields the identical unit vector.
func localVector(text string) content.Vector {
	vec := make(content.Vector, localDims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % localDims)
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
