// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package usage prices model token usage and summarizes it into the cost
// report returned after a presentation is translated.
//
// Prices are USD per one million tokens. The built-in table covers the
// Gemini models the translator is deployed with; it can be extended or
// overridden from a YAML file:
//
//	models:
//	  gemini-2.5-flash:
//	    input_per_million: 0.30
//	    output_per_million: 2.50
//
// Unknown models are priced at zero so a report is always produced.
package usage
