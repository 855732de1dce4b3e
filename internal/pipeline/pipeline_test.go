package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoony8355/searcap/internal/models"
	"github.com/hoony8355/searcap/internal/queue"
)

func TestSearchURL(t *testing.T) {
	tests := []struct {
		name     string
		surface  models.Surface
		keyword  string
		expected string
	}{
		{
			name:     "search surface",
			surface:  models.SurfaceSearch,
			keyword:  "키보드",
			expected: "https://search.naver.com/search.naver?where=nexearch&sm=top_hty&fbm=1&ie=utf8&query=%ED%82%A4%EB%B3%B4%EB%93%9C",
		},
		{
			name:     "shopping surface",
			surface:  models.SurfaceShopping,
			keyword:  "노트북",
			expected: "https://search.shopping.naver.com/search/all?query=%EB%85%B8%ED%8A%B8%EB%B6%81",
		},
		{
			name:     "spaces are escaped",
			surface:  models.SurfaceShopping,
			keyword:  "gaming mouse",
			expected: "https://search.shopping.naver.com/search/all?query=gaming+mouse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SearchURL(tt.surface, tt.keyword))
		})
	}
}

func TestSectionKinds(t *testing.T) {
	assert.Equal(t,
		[]models.SectionKind{models.SectionPowerLink, models.SectionPriceCompare},
		SectionKinds(models.SurfaceSearch))

	assert.Equal(t,
		[]models.SectionKind{models.SectionShopping, models.SectionPriceCompare},
		SectionKinds(models.SurfaceShopping))
}

type fakeSink struct {
	mu     sync.Mutex
	failOn string
	puts   []string
}

func (f *fakeSink) PutCapture(_ context.Context, rec *models.CaptureRecord, data []byte) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failOn == string(rec.SectionKind) {
		return "", "", fmt.Errorf("bucket rejected upload")
	}

	f.puts = append(f.puts, rec.ID)
	key := "captures/test/" + rec.ID + ".png"
	return key, "https://store.example.com/" + key, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.CaptureRecord
	jobIDs  []string
}

func (f *fakeRecorder) InsertCaptureForJob(_ context.Context, rec *models.CaptureRecord, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *rec
	f.records = append(f.records, &copied)
	f.jobIDs = append(f.jobIDs, jobID)
	return nil
}

func TestFinalizeUploadsAndRecords(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}

	p := New(Options{Sink: sink, Recorder: rec})

	task := queue.NewTask("키보드", models.SurfaceSearch)
	task.JobID = "job-1"

	capture := models.NewCaptureRecord(task.Keyword, task.Surface, models.SectionPowerLink)
	capture.CaptureMethod = "element"

	err := p.finalize(context.Background(), task, []*pendingUpload{
		{rec: capture, png: []byte("png-data")},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, capture.Status)
	assert.Equal(t, len("png-data"), capture.ImageBytes)
	assert.NotEmpty(t, capture.ObjectKey)
	assert.Contains(t, capture.ImageURL, "https://store.example.com/")

	require.Len(t, rec.records, 1)
	assert.Equal(t, "job-1", rec.jobIDs[0])
	assert.Equal(t, models.StatusCompleted, rec.records[0].Status)
}

func TestFinalizeRecordsUploadFailure(t *testing.T) {
	sink := &fakeSink{failOn: string(models.SectionPriceCompare)}
	rec := &fakeRecorder{}

	p := New(Options{Sink: sink, Recorder: rec})

	task := queue.NewTask("노트북", models.SurfaceSearch)

	good := models.NewCaptureRecord(task.Keyword, task.Surface, models.SectionPowerLink)
	bad := models.NewCaptureRecord(task.Keyword, task.Surface, models.SectionPriceCompare)

	err := p.finalize(context.Background(), task, []*pendingUpload{
		{rec: good, png: []byte("a")},
		{rec: bad, png: []byte("b")},
	})
	require.Error(t, err)

	// The failed upload still produces a persisted record.
	assert.Equal(t, models.StatusFailed, bad.Status)
	assert.Contains(t, bad.Error, "upload failed")
	require.Len(t, rec.records, 2)
}

func TestFinalizeWithoutUploads(t *testing.T) {
	p := New(Options{})
	task := queue.NewTask("키보드", models.SurfaceSearch)

	assert.NoError(t, p.finalize(context.Background(), task, nil))
}

func TestRecordToleratesNilRecorder(t *testing.T) {
	p := New(Options{})
	capture := models.NewCaptureRecord("키보드", models.SurfaceSearch, models.SectionPowerLink)

	assert.NotPanics(t, func() {
		p.record(context.Background(), capture, "")
	})
}
