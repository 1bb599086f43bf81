// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package slides

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gslides "google.golang.org/api/slides/v1"
)

// PresentationURLFormat renders the edit URL of a presentation id.
const PresentationURLFormat = "https://docs.google.com/presentation/d/%s/edit"

// DefaultTitle is used when a presentation has no title.
const DefaultTitle = "Untitled"

// CopiedPresentation describes the translated copy of a presentation.
type CopiedPresentation struct {
	ID    string `json:"presentation_id"`
	URL   string `json:"presentation_url"`
	Title string `json:"presentation_title"`
}

// Client wraps the Slides and Drive services of one user.
type Client struct {
	slides *gslides.Service
	drive  *drive.Service
}

// NewClient creates the services from explicit client options.
func NewClient(ctx context.Context, slidesOpts, driveOpts []option.ClientOption) (*Client, error) {
	slidesSvc, err := gslides.NewService(ctx, slidesOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create slides service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{slides: slidesSvc, drive: driveSvc}, nil
}

// NewClientFromTokenSource creates the services authorized as the user
// owning ts.
func NewClientFromTokenSource(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	if ts == nil {
		return nil, errors.New("token source is required")
	}
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	return NewClient(ctx, opts, opts)
}

// PresentationURL returns the edit URL for a presentation id.
func PresentationURL(id string) string {
	return fmt.Sprintf(PresentationURLFormat, id)
}

// GetPresentation fetches a presentation with its slides.
func (c *Client) GetPresentation(ctx context.Context, id string) (*gslides.Presentation, error) {
	pres, err := c.slides.Presentations.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get presentation %q: %w", id, err)
	}
	return pres, nil
}

// CopyTitle is the name given to the translated copy.
func CopyTitle(originalTitle, targetLanguage string) string {
	if originalTitle == "" {
		originalTitle = DefaultTitle
	}
	return fmt.Sprintf("%s (%s)", originalTitle, targetLanguage)
}

// CopyPresentation copies the presentation in Drive under a title suffixed
// with the target language.
func (c *Client) CopyPresentation(ctx context.Context, id, targetLanguage string) (*CopiedPresentation, error) {
	original, err := c.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}

	title := CopyTitle(original.Title, targetLanguage)
	copied, err := c.drive.Files.Copy(id, &drive.File{Name: title}).
		SupportsAllDrives(true).
		Fields("id", "name").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to copy presentation %q: %w", id, err)
	}

	return &CopiedPresentation{
		ID:    copied.Id,
		URL:   PresentationURL(copied.Id),
		Title: title,
	}, nil
}
