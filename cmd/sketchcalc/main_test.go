package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calc33/Sketch.NET-sub000/packages/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with a config path that does not exist, so
// the defaults apply.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDocument(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestEvalCommand(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"1+2*3", "7 (Int32)"},
		{"(2.5cm).Millimeters", "25 (Double)"},
		{"2cm + 5mm", "2.5cm (Distance)"},
		{`"a" + "b"`, "ab (String)"},
		{"LineStyle.Dashed", "Dashed (Enum)"},
		{"Center", "Center (Enum)"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			out, _, err := execute(t, "eval", tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestEvalCommandErrors(t *testing.T) {
	_, _, err := execute(t, "eval", "1/0")
	assert.Equal(t, formula.ErrorCodeDiv0, formula.CodeOf(err))

	_, _, err = execute(t, "eval", "1+")
	assert.True(t, formula.IsSyntaxError(err))

	_, _, err = execute(t, "eval")
	assert.Error(t, err)

	_, _, err = execute(t, "--log-level", "loud", "eval", "1")
	assert.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	path := writeDocument(t, `
shapes:
  - name: A
    properties:
      X: 10mm
      Width: X*2
    extra:
      Margin: 2mm
  - name: B
    properties:
      X: Shape["A"].X + Shape["A"].Margin
    locks:
      Y: LockLevel.ValueDisabled
steps:
  - print: B.X
  - set: A.X
    formula: 20mm
  - print: B.X
  - print: A.Width
  - set: B.Y
    value: 7mm
  - print: B.Y
  - set: B.Width
    value: 3cm
  - print: B.Width
  - rename: A
    to: C
  - print: B.X
`)
	out, logs, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, logs, "value ignored by lock level")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "B.X = 12mm (Distance)", lines[0])
	assert.Equal(t, "B.X = 22mm (Distance)", lines[1])
	assert.Equal(t, "A.Width = 40mm (Distance)", lines[2])
	// the lock formula keeps value edits out
	assert.Equal(t, "B.Y = 0mm (Distance)", lines[3])
	assert.Equal(t, "B.Width = 3cm (Distance)", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "B.X = #NAME?"), lines[5])
}

func TestRunCommandPrintsEveryPropertyByDefault(t *testing.T) {
	path := writeDocument(t, `
shapes:
  - name: A
    extra:
      Margin: 2mm
`)
	out, _, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, `A.X = 0mm (Distance)
A.Y = 0mm (Distance)
A.Width = 10mm (Distance)
A.Height = 10mm (Distance)
A.Angle = 0deg (Angle)
A.LineWidth = 0.25mm (Distance)
A.FillColor = #FFFFFFFF (Color)
A.Visible = True (Boolean)
A.Margin = 2mm (Distance)
`, out)
}

func TestRunCommandErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field":     "shapes:\n  - name: A\n    colour: red\n",
		"duplicate shape":   "shapes:\n  - name: A\n  - name: A\n",
		"unknown property":  "shapes:\n  - name: A\n    properties:\n      Depth: 1mm\n",
		"bad step target":   "shapes:\n  - name: A\nsteps:\n  - print: Z.X\n",
		"empty step":        "shapes:\n  - name: A\nsteps:\n  - to: B\n",
		"set without value": "shapes:\n  - name: A\nsteps:\n  - set: A.X\n",
		"syntax in value":   "shapes:\n  - name: A\nsteps:\n  - set: A.X\n    value: 1+\n",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, "run", writeDocument(t, text))
			assert.Error(t, err)
		})
	}

	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
