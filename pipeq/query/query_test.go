package query

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nonibytes/pipeq/pipeq/stage"
	"github.com/nonibytes/pipeq/pipeq/storage"
)

func TestParseKeepsBracketKeys(t *testing.T) {
	p, err := Parse("?category=shoes&price%5Bgte%5D=20&price[lte]=100&sort=-createdAt,name")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Params{
		"category":   Scalar("shoes"),
		"price[gte]": Scalar("20"),
		"price[lte]": Scalar("100"),
		"sort":       Scalar("-createdAt,name"),
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestFromValuesFirstWins(t *testing.T) {
	p := FromValues(url.Values{"a": {"1", "2"}, "b": {}})
	if p.Get("a") != "1" {
		t.Fatalf("a = %q", p.Get("a"))
	}
	if _, ok := p["b"]; ok {
		t.Fatalf("empty value list should be dropped")
	}
}

func TestSplitBracket(t *testing.T) {
	cases := []struct {
		key, field, op string
		ok             bool
	}{
		{"price[gte]", "price", "gte", true},
		{"a[b][c]", "a", "b", true},
		{"a[]", "a", "", true},
		{"[gte]", "", "", false},
		{"price", "", "", false},
		{"price[gte", "", "", false},
	}
	for _, tc := range cases {
		field, op, ok := SplitBracket(tc.key)
		if field != tc.field || op != tc.op || ok != tc.ok {
			t.Errorf("SplitBracket(%q) = %q, %q, %v", tc.key, field, op, ok)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" name, ,price,, ")
	if diff := cmp.Diff([]string{"name", "price"}, got); diff != "" {
		t.Fatalf("SplitList mismatch:\n%s", diff)
	}
}

func TestValueEmpty(t *testing.T) {
	if !Scalar("").Empty() || Scalar("x").Empty() {
		t.Fatalf("scalar emptiness wrong")
	}
	if !Grouped(map[string]string{"gte": ""}).Empty() {
		t.Fatalf("group of empty strings should be empty")
	}
	if Grouped(map[string]string{"gte": "1"}).Empty() {
		t.Fatalf("group with a value is not empty")
	}
}

func TestCoerce(t *testing.T) {
	v, err := Coerce(storage.TypeNumber, "20")
	if err != nil || v != 20.0 {
		t.Fatalf("number: %v, %v", v, err)
	}
	v, err = Coerce(storage.TypeNumber, "abc")
	var ce *CoercionError
	if !errors.As(err, &ce) || ce.Expected != storage.TypeNumber {
		t.Fatalf("number failure err = %v", err)
	}
	if _, ok := v.(stage.Invalid); !ok {
		t.Fatalf("number failure value = %#v", v)
	}
	for _, raw := range []string{"NaN", "Infinity", "-Inf", "inf", "1e400"} {
		v, err := Coerce(storage.TypeNumber, raw)
		if err == nil {
			t.Fatalf("%q should not coerce, got %v", raw, v)
		}
		if _, ok := v.(stage.Invalid); !ok {
			t.Fatalf("%q value = %#v", raw, v)
		}
	}

	for raw, want := range map[string]bool{"true": true, "false": false, "TRUE": false, "1": false} {
		v, err := Coerce(storage.TypeBoolean, raw)
		if err != nil || v != want {
			t.Fatalf("boolean %q = %v, %v", raw, v, err)
		}
	}

	v, err = Coerce(storage.TypeDate, "2024-03-01")
	if err != nil || !v.(time.Time).Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v, %v", v, err)
	}
	v, err = Coerce(storage.TypeDate, "2024-03-01T10:00:00+02:00")
	if err != nil || !v.(time.Time).Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339 date = %v, %v", v, err)
	}
	if v, err := Coerce(storage.TypeDate, "yesterday"); err == nil {
		t.Fatalf("bad date coerced to %v", v)
	}

	v, err = Coerce(storage.TypeRelation, "507f1f77bcf86cd799439011")
	if err != nil || v != stage.RelationID("507f1f77bcf86cd799439011") {
		t.Fatalf("relation = %v, %v", v, err)
	}
	v, err = Coerce(storage.TypeRelation, "nope")
	if err == nil || v != stage.RelationID("nope") {
		t.Fatalf("bad relation = %v, %v", v, err)
	}

	v, err = Coerce(storage.TypeString, "Shoes")
	if err != nil || v != "Shoes" {
		t.Fatalf("string = %v, %v", v, err)
	}
}
