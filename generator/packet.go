package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const systemInstruction = `You are a high reliability program repair system.
Goal: fix the user's broken code based on the provided error log.
Error type: %s

Return a JSON object with this exact structure:
{
  "reproduction_script": "A standalone script that imports the fixed code from the module %q and exercises the failing case. It must fail with the same error when run against the broken code and exit 0 against a correct fix.",
  "candidates": ["full file content of fix 1", "full file content of fix 2", "..."]
}

Rules:
1. Return at most %d candidates, the most confident first.
2. Each candidate must be the full file content, not a diff.
3. The reproduction script must be self contained (mock data if needed).
4. Do not use the os, sys, subprocess or shutil modules, eval, exec, open, input or __import__.
5. Do not use Markdown backticks in the JSON string values.`

const userPrompt = `Broken code:
%s

Error log:
%s
`

// candidateModule is the module name the reproduction script imports
const candidateModule = "fix"

func buildPrompt(req Request) (system, user string) {
	n := req.MaxCandidates
	if n <= 0 {
		n = DefaultMaxCandidates
	}
	system = fmt.Sprintf(systemInstruction, req.ErrorType, candidateModule, n)
	user = fmt.Sprintf(userPrompt, req.Code, req.ErrorLog)
	if len(req.Hints) > 0 {
		user += "\nLibraries in use: " + strings.Join(req.Hints, ", ") + "\n"
	}
	return system, user
}

type wirePacket struct {
	Reproduction *string  `json:"reproduction_script"`
	Candidates   []string `json:"candidates"`
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\\s*```$")

// DecodePacket parses the model answer, Markdown code fences are stripped
func DecodePacket(text string) (*Packet, error) {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	var w wirePacket
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, fmt.Errorf("decode packet: %w", err)
	}
	if w.Reproduction == nil && w.Candidates == nil {
		return nil, fmt.Errorf("decode packet: missing reproduction_script and candidates")
	}
	p := &Packet{Candidates: w.Candidates}
	if w.Reproduction != nil {
		p.Reproduction = *w.Reproduction
	}
	return p, nil
}
