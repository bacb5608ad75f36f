package ruleset

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
)

var templateCache sync.Map

// TemplateData is what rule specifications may reference: the host name and
// free-form variables from configuration.
type TemplateData struct {
	Hostname string
	Vars     map[string]string
}

// RenderSpec expands template directives in one rule specification.
// Templates are cached after the first parse to avoid repeated work.
func RenderSpec(spec string, data TemplateData) (string, error) {
	tpl, err := loadTemplate(spec)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render rule spec %q: %w", spec, err)
	}
	return buf.String(), nil
}

// Render returns a copy of the set with every rule specification expanded
// against the given data.
func (rs Ruleset) Render(data TemplateData) (Ruleset, error) {
	out := Ruleset{
		Chains:   append([]Chain(nil), rs.Chains...),
		Rules:    append([]Rule(nil), rs.Rules...),
		Policies: append([]Policy(nil), rs.Policies...),
	}
	for i, r := range out.Rules {
		spec, err := RenderSpec(r.Spec, data)
		if err != nil {
			return Ruleset{}, err
		}
		out.Rules[i].Spec = spec
	}
	return out, nil
}

func loadTemplate(spec string) (*template.Template, error) {
	if tpl, ok := templateCache.Load(spec); ok {
		return tpl.(*template.Template), nil
	}

	tpl, err := template.New("rule_spec").Option("missingkey=error").Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse rule spec %q: %w", spec, err)
	}

	templateCache.Store(spec, tpl)
	return tpl, nil
}
