package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"go.uber.org/zap"

	"agency-chat-client/internal/models"
	"agency-chat-client/internal/observability"
)

// Per-file validation failures. The texts are what the operator sees.
var (
	ErrNotImage = errors.New("chỉ hỗ trợ tập tin hình ảnh")
	ErrTooLarge = errors.New("kích thước ảnh vượt quá giới hạn 5MB")
)

// File is one selected local file queued for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Rejection pairs an invalid file with the reason it was excluded.
type Rejection struct {
	Name   string
	Reason error
}

// Uploader uploads one file and reports its resulting URL.
type Uploader interface {
	UploadFile(ctx context.Context, name, contentType string, r io.Reader) (models.UploadResult, error)
}

// ValidateBatch splits a multi-select batch into uploadable files and
// per-file rejections. An invalid file never aborts its valid siblings.
func ValidateBatch(files []File, sizeLimit int64) ([]File, []Rejection) {
	var valid []File
	var rejected []Rejection
	for _, f := range files {
		if err := validate(f, sizeLimit); err != nil {
			rejected = append(rejected, Rejection{Name: f.Name, Reason: err})
			observability.IncUpload("rejected")
			continue
		}
		valid = append(valid, f)
	}
	return valid, rejected
}

func validate(f File, sizeLimit int64) error {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return ErrNotImage
	}
	if f.Size > sizeLimit {
		return ErrTooLarge
	}
	return nil
}

// Pipeline uploads batches sequentially so progress can be reported after
// each file completes.
type Pipeline struct {
	uploader Uploader
	log      *zap.Logger
}

// NewPipeline builds a Pipeline on top of an Uploader.
func NewPipeline(uploader Uploader, log *zap.Logger) *Pipeline {
	return &Pipeline{uploader: uploader, log: log}
}

// Run uploads files one at a time, invoking onProgress with the rounded
// percentage after each success. The first failure aborts the remainder;
// results collected so far are returned alongside the error and are not
// rolled back.
func (p *Pipeline) Run(ctx context.Context, files []File, onProgress func(int)) ([]models.UploadResult, error) {
	results := make([]models.UploadResult, 0, len(files))
	total := len(files)

	for i, f := range files {
		result, err := p.uploader.UploadFile(ctx, f.Name, f.ContentType, f.Reader)
		if err != nil {
			observability.IncUpload("failed")
			p.log.Warn("upload aborted",
				zap.String("file", f.Name),
				zap.Int("completed", i),
				zap.Int("total", total),
				zap.Error(err))
			return results, fmt.Errorf("upload %q: %w", f.Name, err)
		}

		results = append(results, result)
		observability.IncUpload("ok")
		observability.AddUploadBytes(f.Size)
		if onProgress != nil {
			onProgress(int(math.Round(float64(i+1) / float64(total) * 100)))
		}
	}
	return results, nil
}
