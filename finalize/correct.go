package finalize

// Mode selects the acceptance contract
type Mode int

const (
	// ModeText accepts any extracted answer
	ModeText Mode = iota
	// ModeStrict requires FINAL: followed by a valid analysis object
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "text"
}

// FailureKind classifies why an attempt was not accepted
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureNoAnswer      FailureKind = "no_final_answer"
	FailureMissingPrefix FailureKind = "missing_prefix"
	FailureInvalidJSON   FailureKind = "invalid_json"
	FailureSchema        FailureKind = "schema_mismatch"
)

// Corrective instructions appended after a failed attempt
const (
	CorrectNoAnswerStrict = "You did not provide a final answer. Reply again with FINAL: followed by the requested output only."
	CorrectNoAnswerText   = "You did not provide a final answer. Reply again with the requested Markdown output only."
	CorrectMissingPrefix  = "Your response did not include the required FINAL: prefix. Reply again with FINAL: followed immediately by the JSON object only."
	CorrectInvalidJSON    = "Your response was not valid JSON. Reply again with FINAL: followed immediately by the JSON object only."
)

// CorrectiveMessage returns the user turn sent after a failure of kind
func CorrectiveMessage(kind FailureKind, mode Mode) Message {
	var content string
	switch kind {
	case FailureMissingPrefix:
		content = CorrectMissingPrefix
	case FailureInvalidJSON, FailureSchema:
		content = CorrectInvalidJSON
	default:
		if mode == ModeStrict {
			content = CorrectNoAnswerStrict
		} else {
			content = CorrectNoAnswerText
		}
	}
	return Message{Role: RoleUser, Content: content}
}
