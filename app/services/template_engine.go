package services

import (
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strings"
)

// MsgRenderedTooLong is recorded on contacts whose expanded body exceeds the
// WhatsApp text limit.
const MsgRenderedTooLong = "Mensagem excede limite de 4096 caracteres"

// AllowedTemplateVariables is the closed set of legal placeholder names.
// Any other identifier is rejected at validation time to catch template typos
// before a campaign runs.
var AllowedTemplateVariables = map[string]bool{
	"nome_cliente":    true,
	"primeiro_nome":   true,
	"valor":           true,
	"data_vencimento": true,
	"dias_atraso":     true,
	"dias_vencimento": true,
	"link_pagamento":  true,
	"codigo_pix":      true,
	"observacoes":     true,
}

var (
	varPattern    = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)
	ifPattern     = regexp.MustCompile(`(?s)\{\{#if\s+([a-z_]+)\s*\}\}(.*?)\{\{/if\}\}`)
	unlessPattern = regexp.MustCompile(`(?s)\{\{#unless\s+([a-z_]+)\s*\}\}(.*?)\{\{/unless\}\}`)

	scriptPattern  = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	iframePattern  = regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`)
	onEventPattern = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
	jsURLPattern   = regexp.MustCompile(`(?i)javascript\s*:`)
)

// TemplateEngine renders billing templates with {{var}} substitutions and
// {{#if}}/{{#unless}} conditional blocks.
type TemplateEngine interface {
	Render(template string, vars map[string]any) (string, error)
	Validate(template string) error
}

// TemplateEngineImpl implements TemplateEngine. Strict mode fails a render on
// placeholders missing from the variable map; otherwise they are left literal.
type TemplateEngineImpl struct {
	strict bool
}

// NewTemplateEngine creates a template engine. Billing rendering runs strict.
func NewTemplateEngine(strict bool) TemplateEngine {
	return &TemplateEngineImpl{strict: strict}
}

// Render sanitizes the template and expands it against the variable map.
// Conditionals are processed before leaf substitutions so variables inside
// removed blocks are never emitted.
func (e *TemplateEngineImpl) Render(template string, vars map[string]any) (string, error) {
	if err := e.Validate(template); err != nil {
		return "", err
	}

	out := Sanitize(template)

	out = unlessPattern.ReplaceAllStringFunc(out, func(block string) string {
		m := unlessPattern.FindStringSubmatch(block)
		if isTruthy(vars[m[1]]) {
			return ""
		}
		return m[2]
	})

	out = ifPattern.ReplaceAllStringFunc(out, func(block string) string {
		m := ifPattern.FindStringSubmatch(block)
		if isTruthy(vars[m[1]]) {
			return m[2]
		}
		return ""
	})

	var missing []string
	out = varPattern.ReplaceAllStringFunc(out, func(ref string) string {
		name := varPattern.FindStringSubmatch(ref)[1]
		v, ok := vars[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return ref
		}
		return fmt.Sprintf("%v", v)
	})

	if len(missing) > 0 {
		if e.strict {
			return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
		}
		log.Printf("template render: missing variables left literal: %s", strings.Join(missing, ", "))
	}

	return out, nil
}

// Validate checks conditional balancing, nesting, and that every referenced
// identifier belongs to the closed variable set.
func (e *TemplateEngineImpl) Validate(template string) error {
	if err := checkBalanced(template, "{{#if", "{{/if}}"); err != nil {
		return err
	}
	if err := checkBalanced(template, "{{#unless", "{{/unless}}"); err != nil {
		return err
	}

	for _, pattern := range []*regexp.Regexp{ifPattern, unlessPattern} {
		for _, m := range pattern.FindAllStringSubmatch(template, -1) {
			if strings.Contains(m[2], "{{#if") || strings.Contains(m[2], "{{#unless") {
				return fmt.Errorf("nested conditionals are not supported")
			}
			if !AllowedTemplateVariables[m[1]] {
				return fmt.Errorf("unknown template variable %q", m[1])
			}
		}
	}

	stripped := ifPattern.ReplaceAllString(unlessPattern.ReplaceAllString(template, "$2"), "$2")
	for _, m := range varPattern.FindAllStringSubmatch(stripped, -1) {
		if !AllowedTemplateVariables[m[1]] {
			return fmt.Errorf("unknown template variable %q", m[1])
		}
	}

	return nil
}

// Sanitize strips script/iframe blocks, inline event handlers, and
// javascript: URL schemes from a template body.
func Sanitize(s string) string {
	s = scriptPattern.ReplaceAllString(s, "")
	s = iframePattern.ReplaceAllString(s, "")
	s = onEventPattern.ReplaceAllString(s, "")
	s = jsURLPattern.ReplaceAllString(s, "")
	return s
}

func checkBalanced(template, open, close string) error {
	opens := strings.Count(template, open)
	closes := strings.Count(template, close)
	if opens != closes {
		return fmt.Errorf("unbalanced conditional: %d %q against %d %q", opens, open, closes, close)
	}
	return nil
}

// isTruthy follows the template DSL rules: non-empty string, non-zero number,
// non-empty list/map.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
