// Package services provides external service integrations and technical concerns like gateway clients and template rendering
package services

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLenientWarnsOnMissing(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	engine := NewTemplateEngine(false)
	out, err := engine.Render("Olá {{nome_cliente}}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Olá {{nome_cliente}}", out)
	assert.Contains(t, buf.String(), "nome_cliente")
}

func TestRenderSubstitution(t *testing.T) {
	engine := NewTemplateEngine(false)

	tests := []struct {
		name     string
		template string
		vars     map[string]any
		expected string
	}{
		{
			name:     "plain substitution",
			template: "Olá {{nome_cliente}}, sua fatura de {{valor}} vence em {{data_vencimento}}.",
			vars: map[string]any{
				"nome_cliente":    "Maria Silva",
				"valor":           "R$ 150,50",
				"data_vencimento": "10/09/2026",
			},
			expected: "Olá Maria Silva, sua fatura de R$ 150,50 vence em 10/09/2026.",
		},
		{
			name:     "whitespace inside braces",
			template: "Oi {{ primeiro_nome }}!",
			vars:     map[string]any{"primeiro_nome": "João"},
			expected: "Oi João!",
		},
		{
			name:     "numeric variable",
			template: "Fatura vencida há {{dias_atraso}} dias.",
			vars:     map[string]any{"dias_atraso": 3},
			expected: "Fatura vencida há 3 dias.",
		},
		{
			name:     "missing variable left literal in non-strict mode",
			template: "Pague em {{link_pagamento}}",
			vars:     map[string]any{},
			expected: "Pague em {{link_pagamento}}",
		},
		{
			name:     "nil variable treated as missing",
			template: "PIX: {{codigo_pix}}",
			vars:     map[string]any{"codigo_pix": nil},
			expected: "PIX: {{codigo_pix}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Render(tt.template, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderStrictMode(t *testing.T) {
	engine := NewTemplateEngine(true)

	_, err := engine.Render("Olá {{nome_cliente}}, pague {{valor}}.", map[string]any{
		"nome_cliente": "Maria",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing template variables")
	assert.Contains(t, err.Error(), "valor")

	got, err := engine.Render("Olá {{nome_cliente}}.", map[string]any{"nome_cliente": "Maria"})
	require.NoError(t, err)
	assert.Equal(t, "Olá Maria.", got)
}

func TestRenderConditionals(t *testing.T) {
	engine := NewTemplateEngine(false)

	tests := []struct {
		name     string
		template string
		vars     map[string]any
		expected string
	}{
		{
			name:     "if block kept on truthy",
			template: "Fatura.{{#if link_pagamento}} Pague em {{link_pagamento}}.{{/if}}",
			vars:     map[string]any{"link_pagamento": "https://pay.example/abc"},
			expected: "Fatura. Pague em https://pay.example/abc.",
		},
		{
			name:     "if block dropped on falsy",
			template: "Fatura.{{#if link_pagamento}} Pague em {{link_pagamento}}.{{/if}}",
			vars:     map[string]any{"link_pagamento": ""},
			expected: "Fatura.",
		},
		{
			name:     "if block dropped on absent variable",
			template: "Fatura.{{#if observacoes}} Obs: {{observacoes}}{{/if}}",
			vars:     map[string]any{},
			expected: "Fatura.",
		},
		{
			name:     "unless block kept on falsy",
			template: "{{#unless codigo_pix}}Sem PIX disponível.{{/unless}}",
			vars:     map[string]any{},
			expected: "Sem PIX disponível.",
		},
		{
			name:     "unless block dropped on truthy",
			template: "{{#unless codigo_pix}}Sem PIX.{{/unless}}PIX: {{codigo_pix}}",
			vars:     map[string]any{"codigo_pix": "abc123"},
			expected: "PIX: abc123",
		},
		{
			name:     "whitespace-only string is falsy",
			template: "{{#if observacoes}}Obs{{/if}}ok",
			vars:     map[string]any{"observacoes": "   "},
			expected: "ok",
		},
		{
			name:     "zero is falsy",
			template: "{{#if dias_atraso}}atrasada{{/if}}em dia",
			vars:     map[string]any{"dias_atraso": 0},
			expected: "em dia",
		},
		{
			name:     "non-zero float is truthy",
			template: "{{#if valor}}cobrável{{/if}}",
			vars:     map[string]any{"valor": 150.5},
			expected: "cobrável",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Render(tt.template, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRenderStrictSkipsDroppedBlocks(t *testing.T) {
	// A variable referenced only inside a removed conditional block must not
	// count as missing.
	engine := NewTemplateEngine(true)

	got, err := engine.Render("Olá {{nome_cliente}}.{{#if link_pagamento}} Link: {{link_pagamento}}{{/if}}", map[string]any{
		"nome_cliente": "Maria",
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá Maria.", got)
}

func TestValidate(t *testing.T) {
	engine := NewTemplateEngine(true)

	tests := []struct {
		name        string
		template    string
		expectError bool
		errContains string
	}{
		{
			name:     "valid template",
			template: "Olá {{nome_cliente}}, {{#if valor}}pague {{valor}}{{/if}}",
		},
		{
			name:        "unknown variable",
			template:    "Olá {{nome}}",
			expectError: true,
			errContains: "unknown template variable",
		},
		{
			name:        "unknown conditional variable",
			template:    "{{#if desconto}}promo{{/if}}",
			expectError: true,
			errContains: "unknown template variable",
		},
		{
			name:        "unbalanced if",
			template:    "{{#if valor}}pague",
			expectError: true,
			errContains: "unbalanced conditional",
		},
		{
			name:        "unbalanced unless",
			template:    "texto{{/unless}}",
			expectError: true,
			errContains: "unbalanced conditional",
		},
		{
			name:        "nested conditionals rejected",
			template:    "{{#if valor}}{{#if codigo_pix}}pix{{/if}}{{/if}}",
			expectError: true,
		},
		{
			name:     "variable inside conditional is validated",
			template: "{{#if valor}}{{link_pagamento}}{{/if}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.Validate(tt.template)
			if tt.expectError {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "script block removed",
			input:    "Olá<script>alert(1)</script> mundo",
			expected: "Olá mundo",
		},
		{
			name:     "iframe removed",
			input:    `antes<iframe src="https://evil.example"></iframe>depois`,
			expected: "antesdepois",
		},
		{
			name:     "inline event handler removed",
			input:    `<a onclick=alert(1)>clique</a>`,
			expected: `<a alert(1)>clique</a>`,
		},
		{
			name:     "javascript url removed",
			input:    "link: javascript:alert(1)",
			expected: "link: alert(1)",
		},
		{
			name:     "plain text untouched",
			input:    "Olá {{nome_cliente}}",
			expected: "Olá {{nome_cliente}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}
