// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package slides connects the translator to Google Slides and Google Drive.
//
// It copies a presentation into a new file named after the target language,
// indexes the translatable text runs of a presentation by slide, turns
// translations into replaceAllText requests and applies them in sequential
// batches.
package slides
