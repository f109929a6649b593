package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gemsieve/gemsieve/internal/domain"
	"github.com/gemsieve/gemsieve/internal/store"
)

func newExporter(t *testing.T) (*Exporter, *store.ProfileRepo) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := store.NewProfileRepo(db)
	return New(repo), repo
}

func seedProfile(t *testing.T, repo *store.ProfileRepo, senderDomain string, soph float64) {
	t.Helper()
	require.NoError(t, repo.UpsertProfile(context.Background(), &domain.SenderProfile{
		SenderDomain:      senderDomain,
		CompanyName:       "Co " + senderDomain,
		PrimaryEmail:      "hello@" + senderDomain,
		Industry:          "SaaS",
		CompanySize:       domain.SizeSmall,
		SophisticationAvg: soph,
		TotalMessages:     5,
		FirstContact:      time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		LastContact:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		BuiltAt:           time.Now().UTC(),
	}))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestGemsExport(t *testing.T) {
	e, repo := newExporter(t)
	ctx := context.Background()
	seedProfile(t, repo, "acme.com", 4)

	require.NoError(t, repo.InsertGem(ctx, &domain.Gem{
		GemType:            domain.GemPartnerProgram,
		SenderDomain:       "acme.com",
		Score:              70,
		Status:             domain.GemStatusNew,
		DetectedAt:         time.Now().UTC(),
		Explanation:        domain.GemExplanation{Summary: "Partner program live"},
		RecommendedActions: []string{"Apply", "Negotiate terms"},
	}))
	require.NoError(t, repo.InsertGem(ctx, &domain.Gem{
		GemType:      domain.GemIndustryIntel,
		SenderDomain: "nowhere.example",
		Score:        90,
		Status:       domain.GemStatusNew,
		DetectedAt:   time.Now().UTC(),
	}))

	path := filepath.Join(t.TempDir(), "gems.csv")
	got, err := e.Gems(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, gemColumns, rows[0])
	// Highest score first; missing profile leaves company columns blank.
	assert.Equal(t, "nowhere.example", rows[1][2])
	assert.Equal(t, "", rows[1][3])
	assert.Equal(t, "acme.com", rows[2][2])
	assert.Equal(t, "Co acme.com", rows[2][3])
	assert.Equal(t, "Apply; Negotiate terms", rows[2][8])
}

func TestSegmentExportSortsBySophistication(t *testing.T) {
	e, repo := newExporter(t)
	ctx := context.Background()
	seedProfile(t, repo, "sharp.com", 8)
	seedProfile(t, repo, "naive.com", 2)
	for _, d := range []string{"sharp.com", "naive.com"} {
		require.NoError(t, repo.ReplaceSegments(ctx, d, []domain.SenderSegment{{
			SenderDomain: d,
			Segment:      domain.SegmentProspectMap,
			SubSegment:   "warm_prospect",
			Confidence:   0.6,
			AssignedAt:   time.Now().UTC(),
		}}))
	}

	path := filepath.Join(t.TempDir(), "prospects.csv")
	_, err := e.Segment(ctx, domain.SegmentProspectMap, path)
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "naive.com", rows[1][0], "least sophisticated first")
	assert.Equal(t, "sharp.com", rows[2][0])
	assert.Equal(t, "warm_prospect", rows[1][10])
}

func TestSegmentExportDefaultPath(t *testing.T) {
	e, repo := newExporter(t)
	seedProfile(t, repo, "acme.com", 4)

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	path, err := e.Segment(context.Background(), "spend_map", "")
	require.NoError(t, err)
	assert.Equal(t, "segment_spend_map.csv", path)
}

func TestAllProfilesCSV(t *testing.T) {
	e, repo := newExporter(t)
	seedProfile(t, repo, "beta.com", 5)
	seedProfile(t, repo, "alpha.com", 3)

	path := filepath.Join(t.TempDir(), "profiles.csv")
	_, err := e.AllProfiles(context.Background(), path, FormatCSV)
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, profileColumns, rows[0])
	assert.Equal(t, "alpha.com", rows[1][0], "ordered by domain")
	assert.Equal(t, "2026-01-10", rows[1][13])
	assert.Equal(t, "false", rows[1][16])
}

func TestAllProfilesExcel(t *testing.T) {
	e, repo := newExporter(t)
	seedProfile(t, repo, "acme.com", 4)

	path := filepath.Join(t.TempDir(), "profiles.csv")
	got, err := e.AllProfiles(context.Background(), path, FormatExcel)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "profiles.xlsx"), got)

	f, err := excelize.OpenFile(got)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sender Profiles")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "sender_domain", rows[0][0])
	assert.Equal(t, "acme.com", rows[1][0])
}
