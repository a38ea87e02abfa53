// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping prompt text editable without touching Go code.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// SystemInstructionPrompt is the system instruction sent with every analysis
// request so responses stay structured and timestamped.
//
//go:embed prompts/system-instruction.txt
var SystemInstructionPrompt string

// SummaryPrompt asks for a comprehensive summary with topics and moments.
//
//go:embed prompts/summary.txt
var SummaryPrompt string

// KeyMomentsPrompt asks for the most important moments with importance notes.
//
//go:embed prompts/key-moments.txt
var KeyMomentsPrompt string

// TranscriptPrompt asks for dialogue and on-screen text extraction.
//
//go:embed prompts/transcript.txt
var TranscriptPrompt string

// ObjectsPrompt asks for per-scene object and people detection.
//
//go:embed prompts/objects.txt
var ObjectsPrompt string

// SentimentPrompt asks for emotional tone tracking across the video.
//
//go:embed prompts/sentiment.txt
var SentimentPrompt string

// EducationalPrompt asks for concepts and takeaways.
//
//go:embed prompts/educational.txt
var EducationalPrompt string

// JSONRepairPrompt is appended when the first response fails schema parsing
// and the request is retried once.
//
//go:embed prompts/json-repair.txt
var JSONRepairPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/custom.txt
var customTemplate string

//go:embed prompts/transcript-analysis.txt
var transcriptAnalysisTemplate string

//go:embed prompts/chat.txt
var chatTemplate string

// Pre-parsed templates for efficiency. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	customPromptTmpl       = template.Must(template.New("custom").Parse(customTemplate))
	transcriptAnalysisTmpl = template.Must(template.New("transcript-analysis").Parse(transcriptAnalysisTemplate))
	chatPromptTmpl         = template.Must(template.New("chat").Parse(chatTemplate))
)

// RenderCustomPrompt renders the custom-mode analysis prompt around the
// user-supplied instructions.
func RenderCustomPrompt(userPrompt string) string {
	return render(customPromptTmpl, struct{ UserPrompt string }{userPrompt})
}

// RenderTranscriptAnalysisPrompt wraps a mode task prompt around transcript
// text for transcript-grounded analysis.
func RenderTranscriptAnalysisPrompt(task, transcript string) string {
	return render(transcriptAnalysisTmpl, struct{ Task, Transcript string }{task, transcript})
}

// ChatPromptData holds the grounding context injected into the chat template.
type ChatPromptData struct {
	Analyses   string
	Transcript string
	History    string
	Question   string
}

// RenderChatPrompt renders the grounded chat prompt.
func RenderChatPrompt(data ChatPromptData) string {
	return render(chatPromptTmpl, data)
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with these simple templates;
	// return whatever was rendered.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
