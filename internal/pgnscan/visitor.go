// Package pgnscan tokenizes PGN archives in a single streaming pass and
// pushes the tokens of each game into a Visitor.
//
// Signal order per game:
//
//	BeginGame
//	Header*            one call per [Key "Value"] tag, in source order
//	EndHeaders         returns Skip(true) to fast-forward to the next game
//	(SAN | BeginVariation ... EndVariation)*
//	EndGame
//
// Byte slices passed to the Visitor are only valid for the duration of the
// call; implementations must copy what they keep.
package pgnscan

// Skip tells the Reader to skip the remainder of the current game (from
// EndHeaders) or of the current variation (from BeginVariation).
type Skip bool

// Visitor receives the signals of one game at a time. Returning an error
// from Header, SAN or EndGame stops the Reader and is returned to the caller.
type Visitor interface {
	BeginGame()
	Header(key, value []byte) error
	EndHeaders() Skip
	SAN(san []byte) error
	BeginVariation() Skip
	EndVariation()
	EndGame() error
}
