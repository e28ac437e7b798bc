package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/lecturer-contract-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest []byte
	assert.ErrorIs(t, repo.Get(ctx, "contract:pdf:c-1:v1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "contract:pdf:c-1:v1", []byte("%PDF"), time.Minute))
	assert.NoError(t, repo.Delete(ctx, "contract:pdf:c-1:v1"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "contract:pdf:c-1:*"))
	assert.NoError(t, repo.Close())
}
