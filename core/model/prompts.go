package model

import "fmt"

// Prompt builders for the chat templates the pipeline runs through the
// model. Kept together so the framing stays consistent between compile-time
// encoding and serve-time querying.

// EncodingPrompt frames a module's content as knowledge for the model to
// internalize during the latent reasoning loop.
func EncodingPrompt(moduleType, moduleName, content string) []Message {
	return []Message{
		{
			Role: "system",
			Content: "You are internalizing a " + moduleType + " named '" + moduleName +
				"'. Absorb its guidance so you can apply it without seeing the text again.",
		},
		{
			Role:    "user",
			Content: content,
		},
	}
}

// IntentQueryPrompt frames a caller's intent for single-pass encoding into
// the same representation space as the compiled modules.
func IntentQueryPrompt(intent string) []Message {
	return []Message{
		{
			Role:    "system",
			Content: "Identify which development rules, skills, or patterns apply to the following request.",
		},
		{
			Role:    "user",
			Content: intent,
		},
	}
}

// DecodePrompt asks the model to expand injected latent knowledge into a
// dense instruction block. The user turn is where the realigned trajectory
// vectors are spliced in.
func DecodePrompt(moduleType string, moduleNames string) []Message {
	return []Message{
		{
			Role: "system",
			Content: "You carry compressed knowledge from these " + moduleType + " modules: " + moduleNames +
				". Expand it into dense, actionable instructions. Be specific and concise.",
		},
		{
			Role:    "user",
			Content: "State the key rules and patterns to follow, as a compact instruction list.",
		},
	}
}

// ComplianceDecodePrompt is the decode framing for code-compliance checks.
func ComplianceDecodePrompt() []Message {
	return []Message{
		{
			Role:    "system",
			Content: "You carry compressed coding rules. Check the submitted code against them and report violations.",
		},
		{
			Role:    "user",
			Content: "List each rule the code may violate and what to change. Be concise.",
		},
	}
}

// CompliancePrompt frames submitted code for retrieval of the rules that
// govern it.
func CompliancePrompt(code string) []Message {
	return []Message{
		{
			Role:    "system",
			Content: "Identify which coding rules and standards apply to the following code.",
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("```\n%s\n```", code),
		},
	}
}
