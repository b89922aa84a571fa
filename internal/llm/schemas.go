package llm

// Schema is a named JSON Schema that a model response must satisfy.
type Schema struct {
	Name       string
	Definition map[string]any
}

var choiceEnum = []any{"A", "B", "C", "D"}

var practiceSchema = &Schema{
	Name: "practice-problems",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"problems"},
		"properties": map[string]any{
			"problems": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"question_text", "correct_answer"},
					"properties": map[string]any{
						"question_text":  map[string]any{"type": "string", "minLength": 1},
						"answer_a":       map[string]any{"type": "string"},
						"answer_b":       map[string]any{"type": "string"},
						"answer_c":       map[string]any{"type": "string"},
						"answer_d":       map[string]any{"type": "string"},
						"correct_answer": map[string]any{"enum": choiceEnum},
						"explanation":    map[string]any{"type": "string"},
						"difficulty":     map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
					},
				},
			},
		},
	},
}

var counterpartQuestionSchema = &Schema{
	Name: "counterpart-question",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"questionText"},
		"properties": map[string]any{
			"questionText": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

var counterpartAnswersSchema = &Schema{
	Name: "counterpart-answers",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"answerA", "answerB", "answerC", "answerD", "correctAnswer"},
		"properties": map[string]any{
			"answerA":       map[string]any{"type": "string", "minLength": 1},
			"answerB":       map[string]any{"type": "string"},
			"answerC":       map[string]any{"type": "string"},
			"answerD":       map[string]any{"type": "string"},
			"correctAnswer": map[string]any{"enum": choiceEnum},
		},
	},
}
