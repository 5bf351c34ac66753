package client

import (
	"github.com/valleykid/growup/core"
)

// BuildRange turns a (start, end) pair into a key range; nil means absent.
// The rules apply in order:
//
//	start, end both nil   unbounded (nil range)
//	end nil               keys <= start
//	start nil             keys >= end
//	end is a bool         true: keys <= start, false: keys >= start
//	start equals end      exactly start
//	otherwise             [start, end]
//
// An inverted [start, end] is not an error; it matches nothing.
func BuildRange(start, end any) (*core.KeyRange, error) {
	r, err := buildRange(start, end)
	if err != nil {
		return nil, invalidArgument("range", "", "%v", err)
	}
	return r, nil
}

func buildRange(start, end any) (*core.KeyRange, error) {
	switch {
	case start == nil && end == nil:
		return nil, nil
	case end == nil:
		return core.UpperBound(start, false)
	case start == nil:
		return core.LowerBound(end, false)
	}

	if upper, ok := end.(bool); ok {
		if upper {
			return core.UpperBound(start, false)
		}
		return core.LowerBound(start, false)
	}

	if c, err := core.CompareKeys(start, end); err == nil && c == 0 {
		return core.Only(start)
	}
	return core.Bound(start, end, false, false)
}
