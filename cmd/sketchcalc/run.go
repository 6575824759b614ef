package main

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/calc33/Sketch.NET-sub000/packages/formula"
	"github.com/calc33/Sketch.NET-sub000/packages/sketch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// documentFile is the YAML form of a drawing accepted by run
type documentFile struct {
	Shapes []shapeSpec `yaml:"shapes"`
	Steps  []stepSpec  `yaml:"steps"`
}

type shapeSpec struct {
	Name       string            `yaml:"name"`
	Properties map[string]string `yaml:"properties"` // declared property -> formula
	Extra      map[string]string `yaml:"extra"`      // extra property -> formula
	Locks      map[string]string `yaml:"locks"`      // property -> lock formula
}

// stepSpec is one edit or query applied after the document is loaded.
// Exactly one of Set, Print, Remove and Rename is given.
type stepSpec struct {
	Set     string  `yaml:"set"` // Shape.Property
	Formula *string `yaml:"formula"`
	Value   *string `yaml:"value"` // formula text evaluated without an owner
	Print   string  `yaml:"print"` // Shape or Shape.Property
	Remove  string  `yaml:"remove"`
	Rename  string  `yaml:"rename"`
	To      string  `yaml:"to"`
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE.yaml",
		Short: "Load shapes and their formulas, apply the steps and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			file, err := parseDocumentFile(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return a.run(cmd.OutOrStdout(), file)
		},
	}
}

func parseDocumentFile(data []byte) (*documentFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file documentFile
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &file, nil
}

func (a *app) run(out io.Writer, file *documentFile) error {
	doc := sketch.NewDocument(a.env, sketch.WithLogger(a.logger))
	for _, spec := range file.Shapes {
		if err := loadShape(doc, spec); err != nil {
			return err
		}
	}

	printed := false
	for i, step := range file.Steps {
		var err error
		switch {
		case step.Set != "":
			err = a.applySet(doc, step)
		case step.Print != "":
			err = printTarget(out, doc, step.Print)
			printed = true
		case step.Remove != "":
			err = doc.RemoveShape(step.Remove)
		case step.Rename != "":
			err = doc.RenameShape(step.Rename, step.To)
		default:
			err = fmt.Errorf("empty step")
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if !printed {
		for _, shape := range doc.Shapes() {
			printShape(out, shape)
		}
	}
	return nil
}

func loadShape(doc *sketch.Document, spec shapeSpec) error {
	shape, err := doc.AddShape(spec.Name)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Extra)) {
		if _, err := shape.AddProperty(name, spec.Extra[name]); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Properties)) {
		if err := shape.SetFormula(name, spec.Properties[name], formula.EditByFormula); err != nil {
			return fmt.Errorf("%s.%s: %w", spec.Name, name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Locks)) {
		p, ok := shape.Property(name)
		if !ok {
			return formula.NewApplicationError(formula.NotFound, fmt.Sprintf("%s has no property %s", spec.Name, name))
		}
		if err := p.SetLockFormula(spec.Locks[name]); err != nil {
			return fmt.Errorf("%s.%s lock: %w", spec.Name, name, err)
		}
	}
	return nil
}

func (a *app) applySet(doc *sketch.Document, step stepSpec) error {
	shape, prop, err := splitTarget(doc, step.Set)
	if err != nil {
		return err
	}
	switch {
	case step.Formula != nil:
		return shape.SetFormula(prop, *step.Formula, formula.EditByFormula)
	case step.Value != nil:
		v, err := a.evaluate(*step.Value)
		if err != nil {
			return err
		}
		if p, ok := shape.Property(prop); ok && !p.CanEdit(formula.EditByValue) {
			a.logger.Warn("value ignored by lock level", "target", step.Set)
		}
		return shape.SetValue(prop, v, formula.EditByValue)
	}
	return fmt.Errorf("set %s needs a formula or a value", step.Set)
}

// splitTarget resolves "Shape.Property". The property part may be empty.
func splitTarget(doc *sketch.Document, target string) (*sketch.Shape, string, error) {
	name, prop, _ := strings.Cut(target, ".")
	shape, ok := doc.Shape(name)
	if !ok {
		return nil, "", formula.NewApplicationError(formula.NotFound, fmt.Sprintf("shape %s not found", name))
	}
	return shape, prop, nil
}

func printTarget(out io.Writer, doc *sketch.Document, target string) error {
	shape, prop, err := splitTarget(doc, target)
	if err != nil {
		return err
	}
	if prop == "" {
		printShape(out, shape)
		return nil
	}
	if _, ok := shape.Property(prop); !ok {
		return formula.NewApplicationError(formula.NotFound, fmt.Sprintf("%s has no property %s", shape.Name(), prop))
	}
	printProperty(out, shape, prop)
	return nil
}

func printShape(out io.Writer, shape *sketch.Shape) {
	for _, def := range shape.Declared() {
		printProperty(out, shape, def.Name)
	}
	for _, name := range shape.ExtraNames() {
		printProperty(out, shape, name)
	}
}

func printProperty(out io.Writer, shape *sketch.Shape, prop string) {
	v, err := shape.Value(prop)
	fmt.Fprintf(out, "%s.%s = %s\n", shape.Name(), prop, describe(v, err))
}
