package upload

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"techwire-be/internal/admin"
	"techwire-be/internal/logger"
	"techwire-be/internal/notify"
	"techwire-be/internal/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init("test", "error")
	os.Exit(m.Run())
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, j *Job) error {
	return m.Called(ctx, j).Error(0)
}

func (m *MockRepository) Complete(ctx context.Context, id, reportURL string) error {
	return m.Called(ctx, id, reportURL).Error(0)
}

func (m *MockRepository) Fail(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) List(ctx context.Context) ([]Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Job), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Dispatch(_ context.Context, e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// failingStore rejects one key and stores the rest.
type failingStore struct {
	inner  storage.Store
	reject string
}

func (s failingStore) Store(ctx context.Context, data []byte, name, contentType string) (string, string, error) {
	if strings.HasPrefix(name, s.reject) {
		return "", "", errors.New("bucket unavailable")
	}
	return s.inner.Store(ctx, data, name, contentType)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var uploader = &admin.Admin{ID: 3, Email: "ops@example.com", Name: "Ops"}

func TestSubmit_ProcessesImages(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	repo := new(MockRepository)
	pub := &recordingPublisher{}
	svc := NewService(repo, storage.NewFSStore(fs, "http://cdn.local"), pub).(*service)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	var jobID string
	repo.On("Create", ctx, mock.MatchedBy(func(j *Job) bool {
		jobID = j.ID
		return j.Status == StatusProcessing && j.UploadedByAdminID == 3 && j.OriginalZipName == "batch.zip"
	})).Return(nil)
	repo.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	data := buildZip(t, map[string][]byte{
		"shots/tee.PNG":      pngHeader,
		"cap.jpeg":           []byte("\xff\xd8\xff\xe0jpeg"),
		"notes.txt":          []byte("ignore me"),
		"__MACOSX/._tee.PNG": []byte("junk"),
		"shots/":             nil,
	})

	job, err := svc.Submit(ctx, data, "batch.zip", uploader)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, job.Status)
	svc.Wait()

	reportKey := "reports/report-" + jobID + "-1700000000000.csv"
	repo.AssertCalled(t, "Complete", mock.Anything, jobID, "http://cdn.local/"+reportKey)

	report, err := afero.ReadFile(fs, reportKey)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(report)), "\n")
	assert.Equal(t, "FILENAME,URL,STATUS,ERROR", lines[0])
	assert.Len(t, lines, 3)
	assert.Contains(t, string(report), "tee.PNG,http://cdn.local/tee.PNG,success,")
	assert.Contains(t, string(report), "cap.jpeg,http://cdn.local/cap.jpeg,success,")

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.KindUploadReport, pub.events[0].Kind)
	assert.Equal(t, "ops@example.com", pub.events[0].Recipient)
	assert.Equal(t, "completed", pub.events[0].Status)
}

func TestSubmit_FailedImageIsReported(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	repo := new(MockRepository)
	svc := NewService(repo, failingStore{inner: storage.NewFSStore(fs, "http://cdn.local"), reject: "bad"}, &recordingPublisher{})

	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Submit(ctx, buildZip(t, map[string][]byte{"bad.png": pngHeader}), "b.zip", uploader)
	require.NoError(t, err)
	svc.Wait()

	files, err := afero.ReadDir(fs, "reports")
	require.NoError(t, err)
	require.Len(t, files, 1)
	report, _ := afero.ReadFile(fs, "reports/"+files[0].Name())
	assert.Contains(t, string(report), "bad.png,,failed,bucket unavailable")
}

func TestSubmit_ReportStoreFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	pub := &recordingPublisher{}
	svc := NewService(repo, failingStore{inner: storage.NewFSStore(afero.NewMemMapFs(), ""), reject: "reports/"}, pub)

	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("Fail", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Submit(ctx, buildZip(t, map[string][]byte{"a.png": pngHeader}), "a.zip", uploader)
	require.NoError(t, err)
	svc.Wait()

	repo.AssertCalled(t, "Fail", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "failed", pub.events[0].Status)
}

func TestSubmit_RejectsNonZip(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, &recordingPublisher{})

	_, err := svc.Submit(context.Background(), []byte("not a zip"), "x.zip", uploader)

	assert.ErrorIs(t, err, ErrInvalidArchive)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_CreateError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))
	svc := NewService(repo, nil, &recordingPublisher{})

	_, err := svc.Submit(ctx, buildZip(t, map[string][]byte{"a.png": pngHeader}), "a.zip", uploader)

	assert.Error(t, err)
	svc.Wait()
}
