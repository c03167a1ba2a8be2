// Package pattern implements the declarative answer matcher.
//
// A Pattern is a device-id prefix plus an ordered list of alternatives, each
// alternative being a sequence of typed tokens. Match trims the trailing line
// terminators of a raw answer, checks the prefix and then tries every
// alternative in declaration order; the first alternative that consumes the
// whole remaining input wins.
//
//	p := pattern.New("TR",
//		[]pattern.Token{pattern.Literal("0")},
//		[]pattern.Token{pattern.Literal("h"), pattern.AnyInt(), pattern.Literal(","), pattern.AnyInt()},
//	)
//	res, err := p.Match([]byte("TRh-1200,3100\n")) // res.Fields: -1200, 3100
//
// Patterns can also be written in a compact textual form, see Parse.
package pattern
