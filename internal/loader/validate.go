package loader

import (
	"fmt"

	"github.com/leapstack-labs/taskforge/internal/template"
	"github.com/leapstack-labs/taskforge/pkg/core"
)

type dependencyKey struct {
	parent, when, child string
}

// Validate checks referential integrity of the document. It does not detect
// dependency cycles; building the dependency graph does.
func (d *Document) Validate() []error {
	v := &validator{doc: d, options: make(map[string]map[string]bool)}
	v.parameters()
	v.templates()
	v.dependencies()
	return v.errs
}

type validator struct {
	doc     *Document
	options map[string]map[string]bool // slug -> option names
	errs    []error
}

func (v *validator) fail(path, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Source:  v.doc.Source,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) parameters() {
	for i, p := range v.doc.Parameters {
		path := fmt.Sprintf("parameters[%d]", i)
		switch {
		case p.Slug == "":
			v.fail(path, "slug is required")
			continue
		case !template.ValidSlug(p.Slug):
			v.fail(path, "slug %q may only contain letters, digits, '_', '.' and '-'", p.Slug)
		}
		if _, dup := v.options[p.Slug]; dup {
			v.fail(path, "duplicate parameter %q", p.Slug)
			continue
		}

		for _, name := range template.Parse(p.Expression, path).Placeholders() {
			if "{"+name+"}" != core.ValueToken {
				v.fail(path+".expression", "placeholder {%s} is not allowed, only %s", name, core.ValueToken)
			}
		}

		names := make(map[string]bool, len(p.Options))
		if len(p.Options) == 0 {
			v.fail(path, "parameter %q has no options", p.Slug)
		}
		for j, o := range p.Options {
			opath := fmt.Sprintf("%s.options[%d]", path, j)
			if o.Name == "" {
				v.fail(opath, "option name is required")
				continue
			}
			if names[o.Name] {
				v.fail(opath, "duplicate option %q of parameter %q", o.Name, p.Slug)
				continue
			}
			names[o.Name] = true
		}
		v.options[p.Slug] = names
	}
}

func (v *validator) templates() {
	codes := make(map[string]bool, len(v.doc.Templates))
	for i, t := range v.doc.Templates {
		path := fmt.Sprintf("templates[%d]", i)
		switch {
		case t.Code == "":
			v.fail(path, "code is required")
		case codes[t.Code]:
			v.fail(path, "duplicate template %q", t.Code)
		default:
			codes[t.Code] = true
		}
		if t.Name == "" {
			v.fail(path, "name is required")
		}

		bound := make(map[string]bool, len(t.Parameters))
		for j, b := range t.Parameters {
			bpath := fmt.Sprintf("%s.parameters[%d]", path, j)
			if _, ok := v.options[b.Parameter]; !ok {
				v.fail(bpath, "unknown parameter %q", b.Parameter)
				continue
			}
			if bound[b.Parameter] {
				v.fail(bpath, "parameter %q bound twice", b.Parameter)
			}
			bound[b.Parameter] = true
		}
	}
}

func (v *validator) dependencies() {
	seen := make(map[dependencyKey]bool, len(v.doc.Dependencies))
	for i, dep := range v.doc.Dependencies {
		path := fmt.Sprintf("dependencies[%d]", i)

		parent, parentOK := v.options[dep.Parent]
		child, childOK := v.options[dep.Child]
		if !parentOK {
			v.fail(path, "unknown parent parameter %q", dep.Parent)
		}
		if !childOK {
			v.fail(path, "unknown child parameter %q", dep.Child)
		}
		if !parentOK || !childOK {
			continue
		}
		if dep.Parent == dep.Child {
			v.fail(path, "parameter %q depends on itself", dep.Parent)
			continue
		}
		if !parent[dep.When] {
			v.fail(path, "parameter %q has no option %q", dep.Parent, dep.When)
		}

		key := dependencyKey{dep.Parent, dep.When, dep.Child}
		if seen[key] {
			v.fail(path, "duplicate dependency %s=%s -> %s", dep.Parent, dep.When, dep.Child)
		}
		seen[key] = true

		for j, name := range dep.Allow {
			if !child[name] {
				v.fail(fmt.Sprintf("%s.allow[%d]", path, j), "parameter %q has no option %q", dep.Child, name)
			}
		}
	}
}

// ValidateConditions reports every binding condition that check rejects.
func (d *Document) ValidateConditions(check func(expr string) error) []error {
	var errs []error
	for i, t := range d.Templates {
		for j, b := range t.Parameters {
			if b.Condition == "" {
				continue
			}
			if err := check(b.Condition); err != nil {
				errs = append(errs, &ValidationError{
					Source:  d.Source,
					Path:    fmt.Sprintf("templates[%d].parameters[%d].condition", i, j),
					Message: err.Error(),
				})
			}
		}
	}
	return errs
}
