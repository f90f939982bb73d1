// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package resource

// State is the load state of one resource identity.
type State int

// Resource states. Unknown is only reported for identities a store
// has never seen.
const (
	Unknown State = iota
	Unloaded
	Loading
	Loaded
	Failed
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Settled reports whether no further progress is expected without
// a new request.
func (s State) Settled() bool {
	return s == Loaded || s == Failed
}
