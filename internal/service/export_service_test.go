package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/dto"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/storage"
)

type digestStub struct {
	ref    time.Time
	digest *dto.WeeklyDigest
}

func (d *digestStub) WeeklyDigest(_ context.Context, ref time.Time) (*dto.WeeklyDigest, bool, error) {
	d.ref = ref
	return d.digest, false, nil
}

func newExportFixture(t *testing.T) (*ExportService, *digestStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	digests := &digestStub{digest: &dto.WeeklyDigest{
		WeekStart: start,
		WeekEnd:   start.AddDate(0, 0, 7).Add(-time.Millisecond),
		DateRange: "Mar 4 - Mar 10, 2024",
		WeeklyStats: dto.WeeklyStats{
			TotalReports: 3, TotalRepresentatives: 2, FlaggedItems: 1, Trend: 50,
		},
		DailyBreakdown: []dto.DayBreakdown{
			{Day: "Monday", Date: "2024-03-04", Reports: 2, Approved: 1},
			{Day: "Tuesday", Date: "2024-03-05", Reports: 1, Flagged: 1},
		},
		TopPerformers: []dto.Performer{{Name: "Ani", Class: "CS 1", Reports: 2, Completion: 29}},
	}}
	svc := NewExportService(ExportServiceParams{
		Digests:  digests,
		Storage:  store,
		Signer:   storage.NewSignedURLSigner("secret", time.Hour),
		Location: time.UTC,
		Config:   ExportConfig{APIPrefix: "/api/v1/"},
	})
	svc.now = func() time.Time { return time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC) }
	return svc, digests
}

func TestExportServiceWeeklyCSV(t *testing.T) {
	svc, digests := newExportFixture(t)

	res, err := svc.WeeklyExport(context.Background(), dto.WeeklyExportRequest{})
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, res.Format)
	assert.True(t, strings.HasPrefix(res.URL, "/api/v1/exports/"))
	assert.Equal(t, 6, digests.ref.Day())

	token := strings.TrimPrefix(res.URL, "/api/v1/exports/")
	file, name, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()
	assert.True(t, strings.HasSuffix(name, ".csv"))

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Day,Date,Reports,Approved,Flagged", lines[0])
	assert.Equal(t, "Monday,2024-03-04,2,1,0", lines[1])
	assert.Equal(t, `Total,"Mar 4 - Mar 10, 2024",3,1,1`, lines[3])
}

func TestExportServiceWeeklyPDF(t *testing.T) {
	svc, digests := newExportFixture(t)

	res, err := svc.WeeklyExport(context.Background(), dto.WeeklyExportRequest{Date: "2024-02-27", Format: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, res.Format)
	assert.Equal(t, time.February, digests.ref.Month())

	file, _, err := svc.Open(strings.TrimPrefix(res.URL, "/api/v1/exports/"))
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
}

func TestExportServiceRejectsBadInput(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.WeeklyExport(context.Background(), dto.WeeklyExportRequest{Format: "xlsx"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.WeeklyExport(context.Background(), dto.WeeklyExportRequest{Date: "06/03/2024"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.Open("not.a.valid.token")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceCleanupKeepsFreshFiles(t *testing.T) {
	svc, _ := newExportFixture(t)
	_, err := svc.WeeklyExport(context.Background(), dto.WeeklyExportRequest{})
	require.NoError(t, err)

	assert.Empty(t, svc.Cleanup())
}
