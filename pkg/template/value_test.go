package template

import (
	"encoding/json"
	"math"
	"testing"
)

func TestValueString(t *testing.T) {
	type named string
	type score int64
	type ratio float32

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "s", "s"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"uint8", uint8(200), "200"},
		{"float", 0.25, "0.25"},
		{"below exponent threshold", 1e20, "100000000000000000000"},
		{"large float", 1e21, "1e+21"},
		{"negative large float", -2.5e22, "-2.5e+22"},
		{"small float", 1.5e-7, "1.5e-7"},
		{"small float above threshold", 0.000001, "0.000001"},
		{"float32", float32(1.1), "1.1"},
		{"named float32", ratio(0.3), "0.3"},
		{"named int", score(12), "12"},
		{"nan", math.NaN(), "NaN"},
		{"json number", json.Number("2.50"), "2.50"},
		{"bool", true, "true"},
		{"list", []any{"a", []any{"b", "c"}}, "a,b,c"},
		{"object", map[string]any{"b": 2, "a": "x"}, `{"a":"x","b":2}`},
		{"typed map", map[string]int{"n": 1}, `{"n":1}`},
		{"int slice", []int{1, 2}, "1,2"},
		{"named string", named("x"), "x"},
		{"nil pointer", (*int)(nil), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromAny(tt.input).String(); got != tt.want {
				t.Errorf("FromAny(%#v).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValueTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"true", BoolValue(true), true},
		{"false", BoolValue(false), false},
		{"text", StringValue("0"), true},
		{"blank", StringValue(" \t\n"), false},
		{"zero", NumberValue(0), false},
		{"negative zero", NumberValue(math.Copysign(0, -1)), false},
		{"nan", NumberValue(math.NaN()), true},
		{"empty list", ListValue(), false},
		{"list", ListValue(Null), true},
		{"empty object", FromAny(map[string]any{}), false},
		{"object", FromAny(map[string]any{"k": nil}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	v := FromAny(map[string]any{"b": 1, "a": []any{"x"}})
	if v.Kind() != KindObject {
		t.Fatalf("Kind() = %v, want object", v.Kind())
	}
	if keys := v.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
	a, ok := v.Field("a")
	if !ok || a.Kind() != KindList || a.Len() != 1 || a.Index(0).String() != "x" {
		t.Errorf("Field(a) = %+v, %v", a, ok)
	}
	if _, ok := v.Field("missing"); ok {
		t.Error("Field(missing) should report false")
	}
	if a.Index(5).Kind() != KindNull {
		t.Error("out of range Index should be null")
	}
	if KindList.String() != "list" {
		t.Errorf("KindList.String() = %q", KindList.String())
	}
}
