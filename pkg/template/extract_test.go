package template

import (
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{"empty", "", []string{}},
		{"no markers", "<p>static</p>", []string{}},
		{"plain and guard in order", "<h1>{{title}}</h1>{{#if show}}<p>{{msg}}</p>{{/if}}", []string{"title", "show", "msg"}},
		{"arrays first", "{{title}}{{#items}}{{name}}{{/items}}", []string{"items", "title"}},
		{"duplicates removed", "{{a}}{{a}}{{#if a}}{{/if}}", []string{"a"}},
		{"helpers and else excluded", "{{#if a}}{{@index}}{{else}}{{b}}{{/if}}", []string{"a", "b"}},
		{"unless guard", "{{#unless hidden}}x{{/unless}}", []string{"hidden"}},
		{"body names are scoped", "{{#items}}{{#if active}}{{name}}{{/if}}{{/items}}", []string{"items"}},
		{"nested list is scoped", "{{#groups}}{{#members}}{{.}}{{/members}}{{/groups}}", []string{"groups"}},
		{"unterminated list is not required", "{{#items}}{{x}}", []string{"x"}},
		{"unterminated guard still required", "{{#if a}}x", []string{"a"}},
		{"top-level dot excluded", "{{.}}", []string{}},
		{"whitespace trimmed", "{{ name }}", []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.template)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeScopedVariables(t *testing.T) {
	a := Analyze("{{#people}}{{name}} {{#if active}}*{{/if}}{{@index}}{{/people}}{{#people}}{{age}}{{/people}}{{#tags}}{{.}}{{/tags}}")

	want := map[string][]string{
		"people": {"name", "active", "age"},
		"tags":   nil,
	}
	if !reflect.DeepEqual(a.Scoped, want) {
		t.Errorf("Scoped = %#v, want %#v", a.Scoped, want)
	}
	if !reflect.DeepEqual(a.Required, []string{"people", "tags"}) {
		t.Errorf("Required = %#v", a.Required)
	}
}

func TestExtractValidateRoundTrip(t *testing.T) {
	templates := []string{
		"",
		"{{a}}",
		"{{#items}}{{x}}{{/items}}{{#if y}}{{z}}{{/if}}",
		"{{#unless a}}{{b}}{{else}}{{c}}{{/unless}}",
	}
	for _, tmpl := range templates {
		required := ExtractVariables(tmpl)
		res := ValidateVariables(Variables{}, required)
		if !reflect.DeepEqual(res.Required, required) {
			t.Errorf("template %q: Required = %#v, want %#v", tmpl, res.Required, required)
		}
	}
}
