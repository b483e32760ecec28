package agent

// Accumulator reassembles complete tool calls from streamed fragments. Calls
// are keyed by id; an index-to-id map bridges later fragments that omit the
// id. Not safe for concurrent use; one accumulator serves one turn.
type Accumulator struct {
	indexToID map[int]string
	calls     map[string]*AccumulatedToolCall
	order     []string
}

func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.Reset()
	return a
}

// AddFragments folds a chunk's fragments into the accumulated state and
// returns the function names newly observed on this call. Fragments whose
// index has no known id and that carry none themselves cannot be attributed
// and are dropped.
func (a *Accumulator) AddFragments(fragments []ToolCallFragment) []string {
	var namesSeen []string
	for _, f := range fragments {
		id := f.ID
		if id != "" {
			if _, ok := a.indexToID[f.Index]; !ok {
				a.indexToID[f.Index] = id
			}
		} else {
			id = a.indexToID[f.Index]
			if id == "" {
				continue
			}
		}

		call, ok := a.calls[id]
		if !ok {
			call = &AccumulatedToolCall{ID: id}
			a.calls[id] = call
			a.order = append(a.order, id)
		}
		if f.FunctionName != "" {
			if call.Name == "" {
				namesSeen = append(namesSeen, f.FunctionName)
			}
			call.Name = f.FunctionName
		}
		call.Arguments += f.ArgumentsFragment
	}
	return namesSeen
}

// Build returns the accumulated calls in completion order. State is kept;
// call Reset to reuse the accumulator for the next step.
func (a *Accumulator) Build() []AccumulatedToolCall {
	out := make([]AccumulatedToolCall, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.calls[id])
	}
	return out
}

// Len reports the number of distinct calls accumulated so far.
func (a *Accumulator) Len() int {
	return len(a.calls)
}

// Reset clears all accumulated state.
func (a *Accumulator) Reset() {
	a.indexToID = make(map[int]string)
	a.calls = make(map[string]*AccumulatedToolCall)
	a.order = a.order[:0]
}
