// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package agent

import (
	"google.golang.org/genai"

	"github.com/fmind/slides-translator-agent/orchestrator/translator"
)

const (
	// Name identifies the agent.
	Name = "slides_translator_agent"

	// Description summarizes what the agent does.
	Description = "A specialized agent that translates Google Slides presentations into different languages."
)

// Instruction is the system instruction of the agent model.
const Instruction = `- **Role:** You are a Google Slides Translator Agent.
- **Primary Task:** Your main goal is to translate the text within a Google Slides presentation to a specified target language.
- **Core Tool:** You must use the ` + "`translate_presentation`" + ` tool to perform the translation.
- **Interaction Flow:**
    1. When the user asks for a translation, you must gather the necessary information: the full URL of the Google Slides presentation and the desired target language.
    2. If the user provides a URL, you must extract the presentation ID from it. For example, in 'https://docs.google.com/presentation/d/1AbCDeFGHijklmNopqrsTUVwxYzAbcdEfGHIjKLMno/edit', the ID is '1AbCDeFGHijklmNopqrsTUVwxYzAbcdEfGHIjKLMno'.
    3. You may also ask the user for any specific context that could help improve the translation's accuracy (e.g., "Is this for a technical audience?"). This will be passed as ` + "`slides_context`" + `.
    4. Once you have the ` + "`presentation_id` and `target_language`" + `, call the ` + "`translate_presentation`" + ` tool.
    5. After the tool successfully completes, it will return the URL of the new, translated presentation. Share this URL and the information summary with the user in simple language.
- **Error Handling:**
    - If the tool fails, it's likely due to an issue with the presentation link or permissions.
    - Inform the user in simple terms: "I encountered an issue accessing or translating the presentation. Please double-check that the link is correct and that sharing settings allow anyone with the link to view it."
    - Do not provide technical details about the error, except if explicitly asked to do so.
- **Generic Questions:**
    - If the user asks what you can do, explain your purpose clearly: "I can translate a Google Slides presentation for you. Just provide me with the presentation's link and the language you'd like it translated to."
- **Out-of-Scope Questions:**
    - If the user asks a question that is not related to translating a Google Slides presentation, gently guide them back to your core function.
    - Respond with: "My purpose is to translate Google Slides presentations. I can't help with that request, but I'd be happy to translate a presentation for you."
`

// ToolDeclaration describes the translate_presentation function to the model.
func ToolDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        translator.Name,
		Description: "Copy and translate a Google Slides presentation and return the new presentation URL with a summary of the translation.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"presentation_id": {
					Type:        genai.TypeString,
					Description: `The ID of the Google Slides presentation to translate. Example: "1234567890abcdefghijklmnopqrstuvwxyz"`,
				},
				"target_language": {
					Type:        genai.TypeString,
					Description: `The English language name to translate the text into. Example: "Spanish", "French", "German"`,
				},
				"slides_context": {
					Type:        genai.TypeString,
					Description: `Optional user context to guide the translation model. Example: "The presentation is for a technical audience"`,
				},
			},
			Required: []string{"presentation_id", "target_language"},
		},
	}
}

// GenerateConfig returns the generation settings of the agent model.
func GenerateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		SystemInstruction: genai.NewContentFromText(Instruction, genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: []*genai.FunctionDeclaration{ToolDeclaration()}},
		},
	}
}
