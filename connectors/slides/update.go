// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package slides

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gslides "google.golang.org/api/slides/v1"
)

// DefaultBatchSize is the number of requests sent per batchUpdate call.
const DefaultBatchSize = 50

// replaceOrder returns the translated sources longest first.
func replaceOrder(translations map[string]string) []string {
	sources := make([]string, 0, len(translations))
	for source := range translations {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if len(sources[i]) != len(sources[j]) {
			return len(sources[i]) > len(sources[j])
		}
		return sources[i] < sources[j]
	})
	return sources
}

// BuildReplaceRequests creates one replaceAllText request per translated
// text. Longer source texts come first so that a text contained in another
// one is replaced only after the longer text was.
//
// replaceAllText matches anywhere on a slide, so a short source can also
// match inside a translation written by an earlier request on the same
// slide. ReplaceCollisions lists those sources.
func BuildReplaceRequests(translations map[string]string, index *TextIndex) []*gslides.Request {
	var requests []*gslides.Request
	for _, source := range replaceOrder(translations) {
		translation := translations[source]
		if strings.TrimSpace(translation) == "" {
			continue
		}
		pageIDs := index.SlideIDs(source)
		if len(pageIDs) == 0 {
			continue
		}
		requests = append(requests, &gslides.Request{
			ReplaceAllText: &gslides.ReplaceAllTextRequest{
				ReplaceText:   translation,
				PageObjectIds: pageIDs,
				ContainsText: &gslides.SubstringMatchCriteria{
					Text:      source,
					MatchCase: true,
				},
			},
		})
	}
	return requests
}

// ReplaceCollisions returns the sources, sorted, that occur inside the
// translation of a text replaced before them on a shared slide.
func ReplaceCollisions(translations map[string]string, index *TextIndex) []string {
	order := replaceOrder(translations)
	var out []string
	for i, source := range order {
		slidesOf := index.SlideIDs(source)
		for _, earlier := range order[:i] {
			if strings.Contains(translations[earlier], source) && shareSlide(slidesOf, index.SlideIDs(earlier)) {
				out = append(out, source)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func shareSlide(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Batches splits requests into consecutive groups of at most size.
func Batches(requests []*gslides.Request, size int) [][]*gslides.Request {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]*gslides.Request
	for start := 0; start < len(requests); start += size {
		stop := start + size
		if stop > len(requests) {
			stop = len(requests)
		}
		batches = append(batches, requests[start:stop])
	}
	return batches
}

// OccurrencesChanged sums the replaceAllText occurrences of a batch response.
func OccurrencesChanged(resp *gslides.BatchUpdatePresentationResponse) int {
	if resp == nil {
		return 0
	}
	total := 0
	for _, reply := range resp.Replies {
		if reply != nil && reply.ReplaceAllText != nil {
			total += int(reply.ReplaceAllText.OccurrencesChanged)
		}
	}
	return total
}

// BatchProgress is reported after each applied batch.
type BatchProgress struct {
	Batch    int
	Batches  int
	Requests int
	Changes  int
}

// BatchUpdate applies requests in sequential batches and returns the total
// number of text occurrences changed. On failure it returns the changes
// applied by the previous batches along with the error.
func (c *Client) BatchUpdate(ctx context.Context, id string, requests []*gslides.Request, batchSize int, progress func(BatchProgress)) (int, error) {
	batches := Batches(requests, batchSize)
	total := 0
	for i, batch := range batches {
		resp, err := c.slides.Presentations.BatchUpdate(id, &gslides.BatchUpdatePresentationRequest{
			Requests: batch,
		}).Context(ctx).Do()
		if err != nil {
			return total, fmt.Errorf("batch %d/%d failed: %w", i+1, len(batches), err)
		}
		changes := OccurrencesChanged(resp)
		total += changes
		if progress != nil {
			progress(BatchProgress{Batch: i + 1, Batches: len(batches), Requests: len(batch), Changes: changes})
		}
	}
	return total, nil
}
