package sandbox

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	want := []string{"python3", "-E", "-s", "-B", "fix.py"}
	if diff := cmp.Diff(want, p.Args("fix.py")); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	for _, src := range []string{
		"from subprocess import run",
		"import shutil",
		"x = __import__('os')",
		"globals()['x'] = 1",
		"name = input()",
	} {
		if p.Violation(src) == "" {
			t.Errorf("%q should be denied", src)
		}
	}
	if v := p.Violation("def f(x):\n    return x * 2\n"); v != "" {
		t.Errorf("clean source denied by %q", v)
	}
}

func TestProfileDenyBoundaries(t *testing.T) {
	p := DefaultProfile()
	denied := []string{
		"import os",
		"import os.path",
		"import json, sys",
		"x = 1\nimport subprocess as sp",
		"from os.path import join",
		"os.system('ls')",
		"subprocess.check_call(['ls'])",
		"open('f')",
		"print(open('f').read())",
		"y = eval ('1')",
	}
	for _, src := range denied {
		if p.Violation(src) == "" {
			t.Errorf("%q should be denied", src)
		}
	}
	allowed := []string{
		"import ostruct",
		"import system_utils",
		"from osgeo import gdal",
		"import sysconfig_helper",
		"def reopen(x):\n    return x\nreopen(1)",
		"f.open('x')",
		"evaluate(1)",
		"my_input(2)",
		"cosmos.system_name",
	}
	for _, src := range allowed {
		if v := p.Violation(src); v != "" {
			t.Errorf("%q denied by %q", src, v)
		}
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(`
command: "node --max-old-space-size=128"
sourceFile: fix.js
harnessFile: test.js
deny:
  - "require\\('child_process'\\)"
`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"node", "--max-old-space-size=128", "test.js"}
	if diff := cmp.Diff(want, p.Args(p.HarnessFile)); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if p.Violation("require('child_process')") == "" {
		t.Error("custom deny pattern not applied")
	}
	if p.Violation("import os") != "" {
		t.Error("custom deny list should replace the default")
	}
	if diff := cmp.Diff(DefaultProfile().Env, p.Env); diff != "" {
		t.Errorf("env should default (-want +got):\n%s", diff)
	}
}

func TestParseProfileInvalid(t *testing.T) {
	if _, err := ParseProfile([]byte(`deny: ["("]`)); err == nil {
		t.Error("invalid regexp accepted")
	}
	if _, err := ParseProfile([]byte(`command: "python3 'unterminated"`)); err == nil {
		t.Error("invalid command accepted")
	}
}
