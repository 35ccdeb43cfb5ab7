package noise

// token is one step of a Noise message pattern, matching the original
// implementation's flat Pattern enum.
type token int

const (
	tokE token = iota
	tokS
	tokEE
	tokES
	tokSE
	tokSS
	tokPSK
)

// pattern describes one named Noise handshake: which static keys are
// known to each party before the first wire message (premessages), and
// the ordered, per-message token list exchanged afterward. Every
// message implicitly ends with a payload, encrypted under whatever key
// is established so far (possibly none).
type Pattern struct {
	name          string
	preInitiator  []token
	preResponder  []token
	messages      [][]token
	fallback      bool // true for the XX fallback continuation
}

// patterns is the full set of handshakes this module supports: the
// fundamental N/K/X one-way patterns, the interactive NN/NK/NX/KN/KK/KX/
// XN/XK/XX family, the "known sender identity" IN/IK/IX family, and the
// XX fallback used when a 0-RTT attempt must downgrade to a full
// handshake.
var patterns = map[string]*Pattern{
	"N": {name: "N", preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES},
	}},
	"K": {name: "K", preInitiator: []token{tokS}, preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES, tokSS},
	}},
	"X": {name: "X", preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES, tokS, tokSS},
	}},
	"NN": {name: "NN", messages: [][]token{
		{tokE},
		{tokE, tokEE},
	}},
	"NK": {name: "NK", preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES},
		{tokE, tokEE},
	}},
	"NX": {name: "NX", messages: [][]token{
		{tokE},
		{tokE, tokEE, tokS, tokES},
	}},
	"KN": {name: "KN", preInitiator: []token{tokS}, messages: [][]token{
		{tokE},
		{tokE, tokEE, tokSE},
	}},
	"KK": {name: "KK", preInitiator: []token{tokS}, preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES, tokSS},
		{tokE, tokEE, tokSE},
	}},
	"KX": {name: "KX", preInitiator: []token{tokS}, messages: [][]token{
		{tokE},
		{tokE, tokEE, tokSE, tokS, tokES},
	}},
	"XN": {name: "XN", messages: [][]token{
		{tokE},
		{tokE, tokEE},
		{tokS, tokSE},
	}},
	"XK": {name: "XK", preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES},
		{tokE, tokEE},
		{tokS, tokSE},
	}},
	"XX": {name: "XX", messages: [][]token{
		{tokE},
		{tokE, tokEE, tokS, tokES},
		{tokS, tokSE},
	}},
	"IN": {name: "IN", messages: [][]token{
		{tokE, tokS},
		{tokE, tokEE, tokSE},
	}},
	"IK": {name: "IK", preResponder: []token{tokS}, messages: [][]token{
		{tokE, tokES, tokS, tokSS},
		{tokE, tokEE, tokSE},
	}},
	"IX": {name: "IX", messages: [][]token{
		{tokE, tokS},
		{tokE, tokEE, tokSE, tokS, tokES},
	}},
	"XXfallback": {name: "XXfallback", preResponder: []token{tokE}, fallback: true, messages: [][]token{
		{tokE, tokEE, tokS, tokSE},
		{tokS, tokES},
	}},
}

// LookupPattern returns the named pattern, or nil if name is not one of
// the patterns this module implements.
func LookupPattern(name string) *Pattern {
	return patterns[name]
}
