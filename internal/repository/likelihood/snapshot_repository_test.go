package likelihood

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/repository"
)

func TestSnapshotSaveFindAndReplace(t *testing.T) {
	db, err := repository.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	_, err = repo.Find(ctx, "s-1")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))

	report := &domain.LikelihoodReport{
		SessionID:           "s-1",
		Symptoms:            map[string]int{"cough": 2},
		TopDiseases:         []domain.DiseaseScore{{Name: "Tuberculosis", Pct: 61.5}, {Name: "Lung Cancer", Pct: 38.4}},
		CancerLikelihoodPct: 38.4,
		Matches:             []domain.CaseMatch{{CaseID: "c1", Similarity: 0.8, SuspectedIllness: "Tuberculosis"}},
		AnalyzedAt:          time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, report))

	got, err := repo.Find(ctx, "s-1")
	require.NoError(t, err)
	if diff := cmp.Diff(report, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	report.CancerLikelihoodPct = 0
	report.TopDiseases = []domain.DiseaseScore{{Name: "Tuberculosis", Pct: 100}}
	require.NoError(t, repo.Save(ctx, report))
	got, err = repo.Find(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.CancerLikelihoodPct)
	assert.Len(t, got.TopDiseases, 1)

	assert.True(t, errors.Is(repo.Save(ctx, &domain.LikelihoodReport{}), domain.ErrInvalidArgument))

	require.NoError(t, repo.Delete(ctx, "s-1"))
	_, err = repo.Find(ctx, "s-1")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
	require.NoError(t, repo.Delete(ctx, "s-1"))
}
