package upload

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"techwire-be/internal/admin"
	"techwire-be/internal/logger"
	"techwire-be/internal/notify"
	"techwire-be/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxEntryBytes = 20 << 20

var imageName = regexp.MustCompile(`(?i)\.(jpe?g|png)$`)

type Service interface {
	// Submit records a processing job and extracts the archive in the
	// background. The returned job is the initial snapshot.
	Submit(ctx context.Context, data []byte, zipName string, by *admin.Admin) (*Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	// Wait blocks until every background job has finished.
	Wait()
}

type service struct {
	repo      Repository
	blobs     storage.Store
	publisher notify.Publisher
	now       func() time.Time

	wg sync.WaitGroup
}

func NewService(repo Repository, blobs storage.Store, publisher notify.Publisher) Service {
	return &service{repo: repo, blobs: blobs, publisher: publisher, now: time.Now}
}

func (s *service) Submit(ctx context.Context, data []byte, zipName string, by *admin.Admin) (*Job, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	job := &Job{
		ID:                uuid.NewString(),
		OriginalZipName:   zipName,
		Status:            StatusProcessing,
		UploadedByAdminID: by.ID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("upload job accepted",
		zap.String("job_id", job.ID),
		zap.String("zip", zipName),
		zap.Int64("admin_id", by.ID),
	)

	// Outlives the request; keeps its values but not its cancellation.
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(bg, *job, zr, by)
	}()

	return job, nil
}

func (s *service) Wait() { s.wg.Wait() }

func (s *service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *service) process(ctx context.Context, job Job, zr *zip.Reader, by *admin.Admin) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("job_id", job.ID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("upload job panicked", zap.Any("panic", p))
			s.finish(ctx, job, by, StatusFailed, "")
		}
	}()

	var rows []ReportRow
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(name, ".") {
			continue
		}
		if !imageName.MatchString(name) {
			continue
		}
		rows = append(rows, s.storeEntry(ctx, f, name))
	}
	log.Info("images processed", zap.Int("count", len(rows)))

	report, err := renderReport(rows)
	if err != nil {
		log.Error("failed to render report", zap.Error(err))
		s.finish(ctx, job, by, StatusFailed, "")
		return
	}

	reportName := fmt.Sprintf("reports/report-%s-%d.csv", job.ID, s.now().UnixMilli())
	url, _, err := s.blobs.Store(ctx, report, reportName, "text/csv")
	if err != nil {
		log.Error("failed to store report", zap.Error(err))
		s.finish(ctx, job, by, StatusFailed, "")
		return
	}

	s.finish(ctx, job, by, StatusCompleted, url)
}

func (s *service) storeEntry(ctx context.Context, f *zip.File, name string) ReportRow {
	row := ReportRow{Filename: name, Status: "failed"}

	data, err := readEntry(f)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	url, _, err := s.blobs.Store(ctx, data, name, mimetype.Detect(data).String())
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to store image", zap.String("file", name), zap.Error(err))
		row.Error = err.Error()
		return row
	}

	row.URL, row.Status = url, "success"
	return row
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntryBytes {
		return nil, fmt.Errorf("%s exceeds %d MB", f.Name, maxEntryBytes>>20)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntryBytes))
}

func renderReport(rows []ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"FILENAME", "URL", "STATUS", "ERROR"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Filename, r.URL, r.Status, r.Error}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *service) finish(ctx context.Context, job Job, by *admin.Admin, status Status, reportURL string) {
	log := logger.FromCtx(ctx).With(zap.String("job_id", job.ID), zap.String("status", string(status)))

	var err error
	if status == StatusCompleted {
		err = s.repo.Complete(ctx, job.ID, reportURL)
	} else {
		err = s.repo.Fail(ctx, job.ID)
	}
	if err != nil {
		log.Error("failed to record job outcome", zap.Error(err))
	}

	log.Info("upload job finished", zap.String("report_url", reportURL))
	s.publisher.Dispatch(ctx, notify.Event{
		Kind:       notify.KindUploadReport,
		OccurredAt: s.now(),
		Recipient:  by.Email,
		Name:       job.OriginalZipName,
		URL:        reportURL,
		Status:     string(status),
	})
}
