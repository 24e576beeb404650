// Package media stores message attachments on local disk.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"funnel-crm/internal/apperror"
	"funnel-crm/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

// URLPrefix is the public path uploaded files are served under.
const URLPrefix = "/files/"

type Store struct {
	db        *gorm.DB
	dir       string
	maxBytes  int64
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time

	sweeping atomic.Bool
	wg       sync.WaitGroup
}

func NewStore(db *gorm.DB, dir string, maxBytes int64, retention time.Duration, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		db:        db,
		dir:       dir,
		maxBytes:  maxBytes,
		retention: retention,
		log:       log.Named("media"),
		now:       time.Now,
	}, nil
}

// URL returns the public path of a stored file.
func URL(filename string) string {
	return URLPrefix + filename
}

// Save writes r under a generated unique name and records it. Every save
// also kicks off a background sweep of expired files.
func (s *Store) Save(ctx context.Context, accountID *uint, originalName string, r io.Reader) (*models.Media, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperror.Validation("file is empty")
	}

	mtype := mimetype.Detect(head)
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if ext == "" || len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = mtype.Extension()
	}

	now := s.now().UTC()
	filename := fmt.Sprintf("%d_%s%s", now.UnixMilli(), uuid.NewString(), ext)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), io.LimitReader(r, s.maxBytes+1-int64(n))))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if size > s.maxBytes {
		_ = os.Remove(path)
		return nil, apperror.Validation("file exceeds the %d byte limit", s.maxBytes)
	}

	record := models.Media{
		AccountID:    accountID,
		Filename:     filename,
		OriginalName: filepath.Base(originalName),
		MimeType:     mtype.String(),
		FileSize:     size,
		UploadedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	s.log.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("mime_type", record.MimeType),
		zap.Int64("size", size),
	)
	s.SweepAsync()
	return &record, nil
}

// Open returns the stored file and its content type. Names that are not a
// single path element are rejected.
func (s *Store) Open(ctx context.Context, name string) (*os.File, string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return nil, "", apperror.NotFound("file not found")
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", apperror.NotFound("file not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}

	var record models.Media
	err = s.db.WithContext(ctx).Where("filename = ?", name).Take(&record).Error
	switch {
	case err == nil && record.MimeType != "":
		return f, record.MimeType, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		s.log.Warn("media lookup failed", zap.String("filename", name), zap.Error(err))
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return f, "application/octet-stream", nil
	}
	return f, mtype.String(), nil
}

// Sweep deletes files and records older than the retention period.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("failed to remove expired upload", zap.String("filename", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if err := s.db.WithContext(ctx).Where("uploaded_at < ?", cutoff.UTC()).Delete(&models.Media{}).Error; err != nil {
		return removed, fmt.Errorf("delete expired media: %w", err)
	}
	return removed, nil
}

// SweepAsync runs Sweep in the background unless one is already running.
func (s *Store) SweepAsync() {
	if !s.sweeping.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sweeping.Store(false)

		removed, err := s.Sweep(context.Background())
		if err != nil {
			s.log.Warn("upload sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			s.log.Info("expired uploads removed", zap.Int("count", removed))
		}
	}()
}

// Wait blocks until a running sweep finishes.
func (s *Store) Wait() {
	s.wg.Wait()
}
