package template

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Plain Placeholder Tests
// =============================================================================

func TestProcessPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{"simple", "Hello {{name}}!", Variables{"name": "World"}, "Hello World!"},
		{"repeated", "{{x}}-{{x}}", Variables{"x": "a"}, "a-a"},
		{"whitespace inside braces", "{{ name }}", Variables{"name": "Al"}, "Al"},
		{"null renders empty", "Hi {{name}}", Variables{"name": nil}, "Hi "},
		{"unsupplied stays", "Hi {{name}}", Variables{}, "Hi {{name}}"},
		{"number", "{{n}}", Variables{"n": 30}, "30"},
		{"float", "{{n}}", Variables{"n": 1.5}, "1.5"},
		{"integral float", "{{n}}", Variables{"n": float64(42)}, "42"},
		{"json number keeps text", "{{n}}", Variables{"n": json.Number("1.50")}, "1.50"},
		{"bool", "{{b}}", Variables{"b": false}, "false"},
		{"list joins", "{{l}}", Variables{"l": []any{"a", 1, nil}}, "a,1,"},
		{"object as json", "{{o}}", Variables{"o": map[string]any{"a": 1}}, `{"a":1}`},
		{"regex metacharacters in key", "{{a.b+c(d)}}", Variables{"a.b+c(d)": "ok"}, "ok"},
		{"no rescan of replacement", "{{a}}", Variables{"a": "{{b}}", "b": "x"}, "{{b}}"},
		{"empty braces are text", "{{ }}", Variables{}, "{{ }}"},
		{"unclosed braces are text", "{{name", Variables{"name": "x"}, "{{name"},
		{"innermost open delimiter wins", "{{a {{b}}", Variables{"b": "B"}, "{{a B"},
		{"odd leading brace stays text", "{{{title}}}", Variables{"title": "X"}, "{X}"},
		{"even leading braces", "a{{{{x}}}}b", Variables{"x": "Y"}, "a{{Y}}b"},
		{"many leading braces", "{{{{{x}}}}}", Variables{"x": "Y"}, "{{{Y}}}"},
		{"top-level else is text", "a{{else}}b", Variables{}, "a{{else}}b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProcessInvalidTemplate(t *testing.T) {
	_, err := Process("", Variables{"a": 1})
	if !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("Process(\"\") error = %v, want ErrInvalidTemplate", err)
	}
}

func TestProcessNilVariablesIsNoop(t *testing.T) {
	tmpl := "{{#if a}}x{{/if}}{{b}}"
	got, err := Process(tmpl, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got != tmpl {
		t.Errorf("Process(nil vars) = %q, want template unchanged", got)
	}
}

func TestProcessIdempotent(t *testing.T) {
	tmpl := "<h1>{{title}}</h1>{{#items}}<li>{{.}}</li>{{/items}}{{#if show}}{{msg}}{{/if}}"
	vars := Variables{"title": "T", "items": []any{"a", "b"}, "show": true, "msg": "m"}

	once, err := Process(tmpl, vars)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	twice, err := Process(once, vars)
	if err != nil {
		t.Fatalf("Process() second pass error = %v", err)
	}
	if once != twice {
		t.Errorf("second pass changed output: %q -> %q", once, twice)
	}
}

// =============================================================================
// Conditional Block Tests
// =============================================================================

func TestConditionalTruthiness(t *testing.T) {
	const tmpl = "{{#if flag}}YES{{else}}NO{{/if}}"

	tests := []struct {
		name string
		flag any
		want string
	}{
		{"zero", 0, "NO"},
		{"non-zero", 3, "YES"},
		{"negative float", -0.5, "YES"},
		{"string", "x", "YES"},
		{"empty string", "", "NO"},
		{"blank string", "   ", "NO"},
		{"empty list", []any{}, "NO"},
		{"list", []any{1}, "YES"},
		{"empty object", map[string]any{}, "NO"},
		{"object", map[string]any{"a": 1}, "YES"},
		{"true", true, "YES"},
		{"false", false, "NO"},
		{"null", nil, "NO"},
		{"json zero", json.Number("0"), "NO"},
		{"json zero float", json.Number("0.0"), "NO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tmpl, Variables{"flag": tt.flag})
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Process(flag=%v) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}

	t.Run("absent", func(t *testing.T) {
		got, _ := Process(tmpl, Variables{})
		if got != "NO" {
			t.Errorf("Process(absent flag) = %q, want %q", got, "NO")
		}
	})
}

func TestConditionalBlocks(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{"if without else false", "a{{#if x}}b{{/if}}c", Variables{"x": false}, "ac"},
		{"unless true", "{{#unless x}}no{{else}}yes{{/unless}}", Variables{"x": true}, "yes"},
		{"unless false", "{{#unless x}}no{{else}}yes{{/unless}}", Variables{"x": ""}, "no"},
		{"nested both", "{{#if a}}{{#if b}}AB{{/if}}{{/if}}", Variables{"a": true, "b": true}, "AB"},
		{"nested inner false", "{{#if a}}{{#if b}}AB{{/if}}{{/if}}", Variables{"a": true, "b": false}, ""},
		{"nested else belongs to inner", "{{#if a}}{{#if b}}AB{{else}}A{{/if}}{{else}}none{{/if}}", Variables{"a": true, "b": false}, "A"},
		{"nested outer else", "{{#if a}}{{#if b}}AB{{else}}A{{/if}}{{else}}none{{/if}}", Variables{"a": false, "b": true}, "none"},
		{"siblings", "{{#if a}}A{{/if}}-{{#if b}}B{{/if}}", Variables{"a": true, "b": true}, "A-B"},
		{"same guard nested", "{{#if a}}1{{#if a}}2{{/if}}3{{/if}}", Variables{"a": 1}, "123"},
		{"unless inside if", "{{#if a}}{{#unless b}}x{{/unless}}{{/if}}", Variables{"a": true, "b": false}, "x"},
		{"if inside unless", "{{#unless a}}{{#if b}}x{{/if}}{{/unless}}", Variables{"a": false, "b": true}, "x"},
		{"second else is text", "{{#if a}}1{{else}}2{{else}}3{{/if}}", Variables{"a": false}, "2{{else}}3"},
		{"placeholders in branch", "{{#if a}}{{x}}{{/if}}", Variables{"a": true, "x": "v"}, "v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Iteration Block Tests
// =============================================================================

func TestIterationBlocks(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{
			name:     "helpers",
			template: "{{#items}}{{@number}}:{{.}} {{/items}}",
			vars:     Variables{"items": []any{"x", "y"}},
			want:     "1:x 2:y ",
		},
		{
			name:     "index first last",
			template: "{{#items}}{{@index}}{{@first}}{{@last}};{{/items}}",
			vars:     Variables{"items": []any{"a", "b"}},
			want:     "0truefalse;1falsetrue;",
		},
		{
			name:     "objects",
			template: "{{#people}}{{name}}-{{age}} {{/people}}",
			vars:     Variables{"people": []any{map[string]any{"name": "Al", "age": 30}}},
			want:     "Al-30 ",
		},
		{
			name:     "string slice",
			template: "{{#tags}}[{{.}}]{{/tags}}",
			vars:     Variables{"tags": []string{"go", "html"}},
			want:     "[go][html]",
		},
		{
			name:     "null element renders empty",
			template: "{{#items}}[{{.}}]{{/items}}",
			vars:     Variables{"items": []any{"a", nil}},
			want:     "[a][]",
		},
		{
			name:     "empty list renders nothing",
			template: "a{{#items}}x{{/items}}b",
			vars:     Variables{"items": []any{}},
			want:     "ab",
		},
		{
			name:     "conditional on element property",
			template: "{{#people}}{{#if active}}{{name}} {{/if}}{{/people}}",
			vars: Variables{"people": []any{
				map[string]any{"name": "Al", "active": true},
				map[string]any{"name": "Bo", "active": false},
				map[string]any{"name": "Cy", "active": true},
			}},
			want: "Al Cy ",
		},
		{
			name:     "separator with last helper",
			template: "{{#items}}{{.}}{{#unless @last}}, {{/unless}}{{/items}}",
			vars:     Variables{"items": []any{"a", "b", "c"}},
			want:     "a, b, c",
		},
		{
			name:     "nested lists",
			template: "{{#groups}}{{name}}:{{#members}}{{.}}{{/members}};{{/groups}}",
			vars: Variables{"groups": []any{
				map[string]any{"name": "g1", "members": []any{"a", "b"}},
				map[string]any{"name": "g2", "members": []any{"c"}},
			}},
			want: "g1:ab;g2:c;",
		},
		{
			name:     "outer variable inside body",
			template: "{{#items}}{{.}}{{sep}}{{/items}}",
			vars:     Variables{"items": []any{"a", "b"}, "sep": "|"},
			want:     "a|b|",
		},
		{
			name:     "element property shadows outer",
			template: "{{#people}}{{name}}{{/people}}/{{name}}",
			vars:     Variables{"name": "top", "people": []any{map[string]any{"name": "inner"}}},
			want:     "inner/top",
		},
		{
			name:     "dot on object element stays",
			template: "{{#people}}{{.}}{{/people}}",
			vars:     Variables{"people": []any{map[string]any{"name": "x"}}},
			want:     "{{.}}",
		},
		{
			name:     "non-list block left as written",
			template: "{{#user}}{{name}}{{/user}}",
			vars:     Variables{"user": map[string]any{"id": 1}, "name": "Al"},
			want:     "{{#user}}Al{{/user}}",
		},
		{
			name:     "undefined block left as written",
			template: "{{#items}}x{{/items}}",
			vars:     Variables{},
			want:     "{{#items}}x{{/items}}",
		},
		{
			name:     "conditional containing list",
			template: "{{#if show}}{{#items}}{{.}}{{/items}}{{/if}}",
			vars:     Variables{"show": true, "items": []any{1, 2}},
			want:     "12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Malformed Input Tests
// =============================================================================

func TestMalformedBlocksAreInert(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{"unterminated if", "{{#if a}}unterminated", Variables{"a": true}, "{{#if a}}unterminated"},
		{"unterminated unless", "{{#unless a}}x", Variables{"a": false}, "{{#unless a}}x"},
		{"unterminated each", "{{#items}}{{.}}", Variables{"items": []any{"a"}}, "{{#items}}{{.}}"},
		{"stray close", "a{{/if}}b", Variables{}, "a{{/if}}b"},
		{"mismatched each close", "{{#items}}x{{/other}}", Variables{"items": []any{1}}, "{{#items}}x{{/other}}"},
		{"unterminated inside valid", "{{#if a}}{{#items}}x{{/if}}", Variables{"a": true, "items": []any{1}}, "{{#items}}x"},
		{"each keyword form is text", "{{#each items}}x{{/each}}", Variables{"items": []any{1}}, "{{#each items}}x{{/each}}"},
		{"if without name is text", "{{#if}}x{{/if}}", Variables{}, "{{#if}}x{{/if}}"},
		{"unclosed outer keeps its marker", "{{#if a}}{{#if b}}x{{/if}}", Variables{"a": true, "b": true}, "{{#if a}}x"},
		{"unclosed outer inner false", "{{#if a}}{{#if b}}x{{/if}}", Variables{"a": true, "b": false}, "{{#if a}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Process() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeeplyUnterminatedBlocksTerminate(t *testing.T) {
	tmpl := strings.Repeat("{{#if a}}{{#items}}", 2000) + "tail"
	got, err := Process(tmpl, Variables{"a": true, "items": []any{1}})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got != tmpl {
		t.Error("unterminated blocks should be left unchanged")
	}
}

func TestProcessDetailedReportsIssues(t *testing.T) {
	res, err := New().ProcessDetailed("{{#if a}}x{{/unless}}", Variables{"a": true})
	if err != nil {
		t.Fatalf("ProcessDetailed() error = %v", err)
	}
	if len(res.Issues) != 2 {
		t.Fatalf("Issues = %v, want 2 issues", res.Issues)
	}
	if res.Issues[0].Message != "unterminated block" || res.Issues[0].Pos != 0 {
		t.Errorf("Issues[0] = %+v", res.Issues[0])
	}
	if res.Issues[1].Marker != "{{/unless}}" {
		t.Errorf("Issues[1].Marker = %q, want {{/unless}}", res.Issues[1].Marker)
	}
}

// =============================================================================
// End-to-End and Option Tests
// =============================================================================

func TestProcessScenario(t *testing.T) {
	tmpl := "<h1>{{title}}</h1>{{#if show}}<p>{{msg}}</p>{{/if}}"

	got, err := Process(tmpl, Variables{"title": "Hi", "show": true, "msg": "World"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if want := "<h1>Hi</h1><p>World</p>"; got != want {
		t.Errorf("show=true: got %q, want %q", got, want)
	}

	got, err = Process(tmpl, Variables{"title": "Hi", "show": false, "msg": "World"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if want := "<h1>Hi</h1>"; got != want {
		t.Errorf("show=false: got %q, want %q", got, want)
	}
}

func TestEngineWithSanitize(t *testing.T) {
	vars := Variables{
		"x":     `<b class="a">&</b>`,
		"items": []any{"<i>", map[string]any{"n": "'q'"}},
	}

	t.Run("escapes quotes", func(t *testing.T) {
		e := New(WithSanitize(SanitizeOptions{}))
		got, err := e.Process(`<p title="{{x}}">{{#items}}{{#if n}}{{n}}{{else}}{{.}}{{/if}}{{/items}}</p>`, vars)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		want := `<p title="&lt;b class=&quot;a&quot;&gt;&amp;&lt;/b&gt;">&lt;i&gt;&#39;q&#39;</p>`
		if got != want {
			t.Errorf("Process() = %q, want %q", got, want)
		}
	})

	t.Run("skips quotes", func(t *testing.T) {
		e := New(WithSanitize(SanitizeOptions{SkipQuoteEscaping: true}))
		got, err := e.Process("{{x}}", vars)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if want := `&lt;b class="a"&gt;&amp;&lt;/b&gt;`; got != want {
			t.Errorf("Process() = %q, want %q", got, want)
		}
	})

	t.Run("typed collections", func(t *testing.T) {
		e := New(WithSanitize(SanitizeOptions{}))
		typed := Variables{
			"people": []map[string]any{{"name": "<script>"}},
			"xs":     [][]string{{"<i>"}},
			"attrs":  map[string]string{"t": "<t>"},
			"v":      ListValue(StringValue("<v>")),
		}
		got, err := e.Process("{{#people}}{{name}}{{/people}}|{{#xs}}{{.}}{{/xs}}|{{attrs}}|{{v}}", typed)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if strings.ContainsAny(got, "<>") {
			t.Errorf("Process() = %q, markup leaked through", got)
		}
		if !strings.HasPrefix(got, "&lt;script&gt;|&lt;i&gt;|") {
			t.Errorf("Process() = %q", got)
		}
	})

	t.Run("does not mutate input", func(t *testing.T) {
		_, _ = New(WithSanitize(SanitizeOptions{})).Process("{{x}}", vars)
		if vars["x"] != `<b class="a">&</b>` {
			t.Errorf("input mutated: %q", vars["x"])
		}
	})
}

func TestTemplateConcurrentExecute(t *testing.T) {
	tmpl, err := Parse("{{#items}}{{name}}{{@index}}{{/items}}")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := tmpl.Execute(Variables{"items": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}})
			if got != "a0b1" {
				t.Errorf("Execute() = %q, want %q", got, "a0b1")
			}
		}()
	}
	wg.Wait()
}
