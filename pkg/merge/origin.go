package merge

import "fmt"

// Origin describes where a path was found across the two inputs.
type Origin int

const (
	ClientOnly Origin = iota // present in the client archive only
	ServerOnly               // present in the server archive only
	Identical                // present in both with the same CRC and size
	Divergent                // present in both with different contents
)

func (o Origin) String() string {
	switch o {
	case ClientOnly:
		return "ClientOnly"
	case ServerOnly:
		return "ServerOnly"
	case Identical:
		return "Identical"
	case Divergent:
		return "Divergent"
	}
	return fmt.Sprintf("Origin(%d)", int(o))
}

// Resolution records how the output bytes of a planned entry are produced.
type Resolution int

const (
	PassThrough Resolution = iota // input bytes copied unchanged
	ClassMerge                    // side-aware class merge of both inputs
	ClientWins                    // divergent resource, client bytes kept
	ServerWins                    // divergent resource, server bytes kept
	Annotated                     // one-sided class tagged with a class-level marker
)

func (r Resolution) String() string {
	switch r {
	case PassThrough:
		return "PassThrough"
	case ClassMerge:
		return "ClassMerge"
	case ClientWins:
		return "ClientWins"
	case ServerWins:
		return "ServerWins"
	case Annotated:
		return "Annotated"
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}
