/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// Prompt is a template with named placeholders awaiting values.
type Prompt struct {
	template string
	bound    map[string]valueFunc
}

type valueFunc func() (string, error)

// New parses a template and registers every {{name}} placeholder as unbound.
func New(template string) (*Prompt, error) {
	bound := make(map[string]valueFunc)
	if _, err := walkTemplate(template, func(name string) (string, error) {
		if _, ok := bound[name]; !ok {
			bound[name] = unbound(name)
		}
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: template, bound: bound}, nil
}

// Must panics if err is non-nil, for package-level template variables.
func Must(p *Prompt, err error) *Prompt {
	if err != nil {
		panic(err)
	}
	return p
}

func unbound(name string) valueFunc {
	return func() (string, error) {
		return "", fmt.Errorf("unbound placeholder: %s", name)
	}
}

// Placeholders returns the set of placeholder names in the template.
func (p *Prompt) Placeholders() map[string]struct{} {
	names := make(map[string]struct{}, len(p.bound))
	for name := range p.bound {
		names[name] = struct{}{}
	}
	return names
}

// BindText binds a plain string to a placeholder. Returns a new Prompt.
func (p *Prompt) BindText(name, value string) (*Prompt, error) {
	return p.bind(name, func() (string, error) { return value, nil })
}

// BindJSON binds structured data, rendered as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %s as JSON: %w", name, err)
		}
		return string(b), nil
	})
}

// BindYAML binds structured data, rendered as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("marshaling %s as YAML: %w", name, err)
		}
		return string(b), nil
	})
}

func (p *Prompt) bind(name string, fn valueFunc) (*Prompt, error) {
	cur, ok := p.bound[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if _, err := cur(); err == nil {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	next := &Prompt{template: p.template, bound: maps.Clone(p.bound)}
	next.bound[name] = fn
	return next, nil
}

// Build renders the template, failing if any placeholder is still unbound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bound))
	for name, fn := range p.bound {
		v, err := fn()
		if err != nil {
			return "", err
		}
		values[name] = v
	}
	return walkTemplate(p.template, func(name string) (string, error) {
		return values[name], nil
	})
}
