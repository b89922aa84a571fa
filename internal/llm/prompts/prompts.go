package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

// Files holds the built-in prompt templates.
//
//go:embed templates/*.txt
var Files embed.FS

var (
	questionTagRegex        = regexp.MustCompile(`(?i)</?\s*question\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxTextRunes = 4000

// Kind names a prompt template.
type Kind string

const (
	KindGuide               Kind = "guide"
	KindPractice            Kind = "practice"
	KindCounterpartQuestion Kind = "counterpart_question"
	KindCounterpartAnswers  Kind = "counterpart_answers"
)

var kinds = []Kind{KindGuide, KindPractice, KindCounterpartQuestion, KindCounterpartAnswers}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Kind]*template.Template
)

// Prompt is a rendered system/user message pair.
type Prompt struct {
	System string
	User   string
}

// QuestionLine is one question listed in a tutor guide request.
type QuestionLine struct {
	Number  int
	Text    string
	Section string
}

// GuideData holds template data for tutor guides.
type GuideData struct {
	Concept   string
	Names     []string
	Questions []QuestionLine
}

// PracticeData holds template data for practice problem sets.
type PracticeData struct {
	Concept string
	Section string
	Sample  string
	Count   int
}

// CounterpartData holds template data for both counterpart steps.
// QuestionText is the generated question and is only used by the answers step.
type CounterpartData struct {
	Section        string
	ReadingWriting bool
	Concept        string
	Text           string
	Answers        []string
	Correct        string
	QuestionText   string
}

// Load parses the prompt templates from fsys. Only the first call has any
// effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[Kind]*template.Template, len(kinds))
		for _, k := range kinds {
			file := "templates/" + string(k) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(k)).
				Funcs(template.FuncMap{"join": strings.Join}).
				Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[k] = tmpl
		}
	})
	return loadErr
}

// Build renders the system and user messages of a prompt.
func Build(kind Kind, data any) (Prompt, error) {
	if templates == nil {
		return Prompt{}, errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[kind]
	if !ok {
		if loadErr != nil {
			return Prompt{}, fmt.Errorf("templates load failed: %w", loadErr)
		}
		return Prompt{}, errors.New("unknown prompt: " + string(kind))
	}

	var sys, user bytes.Buffer
	if err := tmpl.ExecuteTemplate(&sys, "system", data); err != nil {
		return Prompt{}, err
	}
	if err := tmpl.ExecuteTemplate(&user, "user", data); err != nil {
		return Prompt{}, err
	}
	return Prompt{System: strings.TrimSpace(sys.String()), User: strings.TrimSpace(user.String())}, nil
}

// Sanitize prepares question text for embedding in a prompt: it strips tags
// that could close the surrounding delimiters and caps the length.
func Sanitize(text string) string {
	text = questionTagRegex.ReplaceAllString(text, "")
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No text available]"
	}

	if utf8.RuneCountInString(text) > maxTextRunes {
		runes := []rune(text)
		text = string(runes[:maxTextRunes]) + "\n\n[Text truncated due to length]"
	}
	return text
}
