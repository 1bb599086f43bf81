// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package slides

import (
	"sort"
	"strings"
	"unicode"

	gslides "google.golang.org/api/slides/v1"
)

// TextIndex maps each unique translatable text run to the slides it appears on.
type TextIndex struct {
	order     []string
	locations map[string]map[string]struct{}
	slides    int
}

// NewTextIndex creates an empty index.
func NewTextIndex() *TextIndex {
	return &TextIndex{locations: make(map[string]map[string]struct{})}
}

// Add records that text appears on the slide. Text is trimmed; empty runs
// and runs without any letter are ignored.
func (x *TextIndex) Add(slideID, text string) bool {
	text = strings.TrimSpace(text)
	if !Translatable(text) {
		return false
	}
	slides, ok := x.locations[text]
	if !ok {
		slides = make(map[string]struct{})
		x.locations[text] = slides
		x.order = append(x.order, text)
	}
	slides[slideID] = struct{}{}
	return true
}

// Texts returns the unique texts in first-seen order.
func (x *TextIndex) Texts() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Len returns the number of unique texts.
func (x *TextIndex) Len() int {
	return len(x.order)
}

// SlideIDs returns the sorted ids of the slides containing text.
func (x *TextIndex) SlideIDs(text string) []string {
	slides := x.locations[text]
	ids := make([]string, 0, len(slides))
	for id := range slides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SlideCount returns the number of slides walked to build the index.
func (x *TextIndex) SlideCount() int {
	return x.slides
}

// SlidesWithText returns the number of distinct slides holding indexed text.
func (x *TextIndex) SlidesWithText() int {
	seen := make(map[string]struct{})
	for _, slides := range x.locations {
		for id := range slides {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// Translatable reports whether a trimmed text run holds at least one letter.
func Translatable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// ExtractTexts indexes the text runs of every slide of pres, including
// table cells and grouped elements.
func ExtractTexts(pres *gslides.Presentation) *TextIndex {
	index := NewTextIndex()
	if pres == nil {
		return index
	}
	for _, slide := range pres.Slides {
		if slide == nil {
			continue
		}
		index.slides++
		for _, element := range slide.PageElements {
			walkElement(index, slide.ObjectId, element)
		}
	}
	return index
}

func walkElement(index *TextIndex, slideID string, element *gslides.PageElement) {
	if element == nil {
		return
	}
	if element.Shape != nil {
		addTextContent(index, slideID, element.Shape.Text)
	}
	if element.Table != nil {
		for _, row := range element.Table.TableRows {
			for _, cell := range row.TableCells {
				addTextContent(index, slideID, cell.Text)
			}
		}
	}
	if element.ElementGroup != nil {
		for _, child := range element.ElementGroup.Children {
			walkElement(index, slideID, child)
		}
	}
}

func addTextContent(index *TextIndex, slideID string, content *gslides.TextContent) {
	if content == nil {
		return
	}
	for _, te := range content.TextElements {
		if te.TextRun != nil {
			index.Add(slideID, te.TextRun.Content)
		}
	}
}
