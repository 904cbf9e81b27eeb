package sandbox

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/google/shlex"
)

// Profile describes how candidates of one language are executed
type Profile struct {
	// Command is the interpreter command line, the entry file name is appended
	Command string `yaml:"command"`
	// SourceFile is the file name the candidate is written to
	SourceFile string `yaml:"sourceFile"`
	// HarnessFile is the file name the reproduction script is written to
	HarnessFile string `yaml:"harnessFile"`
	// Env is the process environment
	Env []string `yaml:"env"`
	// MemoryMarkers in stderr of a failed run mark it as crashed
	MemoryMarkers []string `yaml:"memoryMarkers"`
	// Deny patterns (regular expressions) reject a candidate before execution
	Deny []string `yaml:"deny"`

	args []string
	deny []*regexp.Regexp
}

// DefaultProfile returns the Python 3 profile
func DefaultProfile() *Profile {
	p := &Profile{
		Command:     "python3 -E -s -B",
		SourceFile:  "fix.py",
		HarnessFile: "test.py",
		Env: []string{
			"PATH=/usr/local/bin:/usr/bin:/bin",
			"HOME=/tmp",
			"LANG=C.UTF-8",
			"PYTHONIOENCODING=utf-8",
			"PYTHONDONTWRITEBYTECODE=1",
		},
		MemoryMarkers: []string{
			"MemoryError",
			"Cannot allocate memory",
		},
		Deny: []string{
			`\bimport\s+([\w.]+\s*,\s*)*(os|subprocess|sys|shutil)\b`,
			`\bfrom\s+(os|subprocess|sys|shutil)(\.\w+)*\s+import\b`,
			`\bos\.(system|popen|spawn\w*|exec\w*)\b`,
			`\bsubprocess\.(run|Popen|call|check_call|check_output)\b`,
			`(^|[^\w.])(eval|exec|open|globals|locals|input)\s*\(`,
			`\b__import__\b`,
		},
	}
	if err := p.compile(); err != nil {
		panic(err)
	}
	return p
}

// LoadProfile reads the yaml profile, empty fields keep the default value
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(b)
}

// ParseProfile parses yaml profile content
func ParseProfile(b []byte) (*Profile, error) {
	def := DefaultProfile()
	p := new(Profile)
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if p.Command == "" {
		p.Command = def.Command
	}
	if p.SourceFile == "" {
		p.SourceFile = def.SourceFile
	}
	if p.HarnessFile == "" {
		p.HarnessFile = def.HarnessFile
	}
	if p.Env == nil {
		p.Env = def.Env
	}
	if p.MemoryMarkers == nil {
		p.MemoryMarkers = def.MemoryMarkers
	}
	if p.Deny == nil {
		p.Deny = def.Deny
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) compile() error {
	args, err := shlex.Split(p.Command)
	if err != nil {
		return fmt.Errorf("parse command %q: %w", p.Command, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}
	p.args = args

	p.deny = make([]*regexp.Regexp, 0, len(p.Deny))
	for _, d := range p.Deny {
		re, err := regexp.Compile(d)
		if err != nil {
			return fmt.Errorf("compile deny pattern %q: %w", d, err)
		}
		p.deny = append(p.deny, re)
	}
	return nil
}

// Args returns the command line to run the given entry file
func (p *Profile) Args(entry string) []string {
	rt := make([]string, 0, len(p.args)+1)
	rt = append(rt, p.args...)
	return append(rt, entry)
}
