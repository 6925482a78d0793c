package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// generator produces the application artifact and its README.
type generator interface {
	generateCode(ctx context.Context, brief, existingCode string) (string, error)
	generateReadme(ctx context.Context, brief, code string) (string, error)
}

// geminiGenerator implements generator on the Gemini API.
type geminiGenerator struct {
	client      *genai.Client
	codeModel   string
	readmeModel string
}

func newGeminiGenerator(ctx context.Context, apiKey, codeModel, readmeModel string) (*geminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("error creating generation client: %w", err)
	}
	return &geminiGenerator{
		client:      client,
		codeModel:   codeModel,
		readmeModel: readmeModel,
	}, nil
}

const codePrompt = `You are a meticulous, senior full-stack developer tasked with creating a flawless, single-page web application in a single index.html file.
Your work will be automatically graded by a testing script that executes JavaScript checks against the live webpage. Absolute precision is required to pass.

CRITICAL REQUIREMENTS (NON-NEGOTIABLE):
1. HTML Element IDs: if the brief specifies an HTML element with an ID, you MUST create that exact element with that exact id attribute.
2. External Libraries: if the brief mentions loading external libraries from a CDN, you MUST include a script or link tag in the head section for EVERY library mentioned.
3. Data Handling: if the brief provides data in an attachment, you MUST embed this data directly into a JavaScript variable. DO NOT write code that tries to fetch a local file.
4. Functional Logic: you MUST write all necessary JavaScript logic to fully implement the brief's requirements, including calculations, API calls and event listeners.

USER BRIEF:
---
%s
---
`

const revisionPrompt = `
This is a revision request. Update the following code based on the new USER BRIEF. You must adhere to all the CRITICAL REQUIREMENTS.
--- EXISTING CODE ---
%s
--- END OF EXISTING CODE ---
Return only the complete, updated and corrected index.html file content.
`

const readmePrompt = `You are a technical writer. Create a professional README.md for a repository.
The brief for the project was: "%s"

The README should include these sections:
- A project title.
- A summary of what the application does.
- Setup instructions (e.g. "Just open the index.html file in a browser").
- A brief explanation of the code.
- A "License" section mentioning it is under the MIT License.

Return only the complete README.md content.
`

func (g *geminiGenerator) generateCode(ctx context.Context, brief, existingCode string) (string, error) {
	prompt := fmt.Sprintf(codePrompt, brief)
	if existingCode != "" {
		prompt += fmt.Sprintf(revisionPrompt, existingCode)
	} else {
		prompt += "\nReturn only the complete, final index.html file content. Do not add explanations or markdown formatting."
	}

	log.Println("generator: requesting application code")
	text, err := g.generate(ctx, g.codeModel, prompt)
	if err != nil {
		return "", err
	}
	return stripFence(text), nil
}

func (g *geminiGenerator) generateReadme(ctx context.Context, brief, code string) (string, error) {
	log.Println("generator: requesting README")
	text, err := g.generate(ctx, g.readmeModel, fmt.Sprintf(readmePrompt, brief))
	if err != nil {
		return "", err
	}
	return stripFence(text), nil
}

func (g *geminiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("error generating content: %w", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("model %s returned no text", model)
	}
	return text, nil
}

// stripFence returns the content of the first fenced code block when a fence
// marker is present, else the text verbatim.
func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	rest := text[start+3:]
	// drop the info string, e.g. "html"
	if i := strings.Index(rest, "\n"); i >= 0 {
		rest = rest[i+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
