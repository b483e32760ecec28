package agent

import (
	"reflect"
	"testing"
)

func TestAccumulator_SingleCallAcrossFragments(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	names := a.AddFragments([]ToolCallFragment{
		{Index: 0, ID: "call_1", FunctionName: "check_stock", ArgumentsFragment: `{"med`},
	})
	if !reflect.DeepEqual(names, []string{"check_stock"}) {
		t.Fatalf("names=%v, want=[check_stock]", names)
	}
	if names = a.AddFragments([]ToolCallFragment{
		{Index: 0, ArgumentsFragment: `_id": "`},
		{Index: 0, ArgumentsFragment: `med_001"}`},
	}); len(names) != 0 {
		t.Fatalf("repeat fragments reported names %v", names)
	}

	got := a.Build()
	want := []AccumulatedToolCall{{ID: "call_1", Name: "check_stock", Arguments: `{"med_id": "med_001"}`}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestAccumulator_InterleavedCalls(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.AddFragments([]ToolCallFragment{
		{Index: 0, ID: "call_a", FunctionName: "get_medication_info", ArgumentsFragment: `{"query":`},
		{Index: 1, ID: "call_b", FunctionName: "check_stock", ArgumentsFragment: `{"med_id":`},
	})
	a.AddFragments([]ToolCallFragment{
		{Index: 1, ArgumentsFragment: `"med_002"}`},
		{Index: 0, ArgumentsFragment: `"aspirin"}`},
	})

	got := a.Build()
	want := []AccumulatedToolCall{
		{ID: "call_a", Name: "get_medication_info", Arguments: `{"query":"aspirin"}`},
		{ID: "call_b", Name: "check_stock", Arguments: `{"med_id":"med_002"}`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestAccumulator_DropsUnattributableFragments(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.AddFragments([]ToolCallFragment{{Index: 5, ArgumentsFragment: `{"orphan":true}`}})
	if n := a.Len(); n != 0 {
		t.Fatalf("len=%d, want=0", n)
	}
	if got := a.Build(); len(got) != 0 {
		t.Fatalf("got=%v, want empty", got)
	}
}

func TestAccumulator_LateName(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.AddFragments([]ToolCallFragment{{Index: 0, ID: "call_1", ArgumentsFragment: `{}`}})
	names := a.AddFragments([]ToolCallFragment{{Index: 0, FunctionName: "get_user_prescriptions"}})
	if !reflect.DeepEqual(names, []string{"get_user_prescriptions"}) {
		t.Fatalf("names=%v, want=[get_user_prescriptions]", names)
	}
	got := a.Build()
	if len(got) != 1 || got[0].Name != "get_user_prescriptions" || got[0].Arguments != `{}` {
		t.Fatalf("got=%v", got)
	}
}

func TestAccumulator_BuildDoesNotClear(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.AddFragments([]ToolCallFragment{{Index: 0, ID: "call_1", FunctionName: "check_stock"}})
	first := a.Build()
	second := a.Build()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("build not stable: %v vs %v", first, second)
	}

	a.Reset()
	if got := a.Build(); len(got) != 0 {
		t.Fatalf("after reset got=%v, want empty", got)
	}
}
