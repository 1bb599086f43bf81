// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package gcs archives translation reports to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/fmind/slides-translator-agent/shared/logger"
)

// ReportPrefix is the top-level folder of archived reports.
const ReportPrefix = "reports"

// ErrNoBucket is returned when the archiver has no bucket configured.
var ErrNoBucket = errors.New("reports bucket is not configured")

type writerFunc func(ctx context.Context, bucket, name string) io.WriteCloser

// ReportArchiver writes JSON reports to reports/<user>/<presentation>/<timestamp>.json.
type ReportArchiver struct {
	client *storage.Client
	bucket string
	log    *logger.Logger

	now        func() time.Time
	openWriter writerFunc
}

// NewReportArchiver creates a GCS client and an archiver for bucket.
func NewReportArchiver(ctx context.Context, bucket string, log *logger.Logger, opts ...option.ClientOption) (*ReportArchiver, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	a := &ReportArchiver{
		client: client,
		bucket: bucket,
		log:    log,
		now:    time.Now,
	}
	a.openWriter = a.storageWriter
	return a, nil
}

func (a *ReportArchiver) storageWriter(ctx context.Context, bucket, name string) io.WriteCloser {
	w := a.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	w.CacheControl = "no-cache"
	return w
}

// Bucket returns the destination bucket.
func (a *ReportArchiver) Bucket() string {
	return a.bucket
}

// ObjectName returns the object path of a report created at t.
func ObjectName(userID, presentationID string, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s.json",
		ReportPrefix,
		pathSegment(userID),
		pathSegment(presentationID),
		t.UTC().Format(time.RFC3339))
}

// pathSegment keeps a value from introducing extra folders.
func pathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(s)
}

// Archive uploads report as JSON and returns the object name.
func (a *ReportArchiver) Archive(ctx context.Context, userID, presentationID string, report interface{}) (string, error) {
	if a.bucket == "" {
		return "", ErrNoBucket
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	name := ObjectName(userID, presentationID, a.now())
	writer := a.openWriter(ctx, a.bucket, name)
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer for %s: %w", name, err)
	}

	if a.log != nil {
		a.log.Info(userID, "", "Report archived", map[string]interface{}{
			"bucket": a.bucket,
			"object": name,
			"bytes":  len(body),
		})
	}
	return name, nil
}

// HealthCheck verifies the bucket is reachable.
func (a *ReportArchiver) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return errors.New("GCS client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := a.client.Bucket(a.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("failed to read bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Close releases the GCS client.
func (a *ReportArchiver) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
