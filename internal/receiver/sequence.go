package receiver

// sequence.go matches recently decoded characters against a table of
// frequent amateur-radio fragments, expressed as the shared morsecode
// representation strings so the same table serves both the generator and
// the receiver. It is advisory only — a hint the front end may use to
// correct likely mis-splits of a run of characters, never a silent rewrite
// of PollCharacter's own output.

// Pattern is a known multi-character sequence, expressed as the
// concatenation of each character's dot/dash representation with a single
// space marking an inter-character boundary; those spaces are the boundary
// positions the pattern expects.
type Pattern struct {
	Text           string
	Representation string
	Priority       int
}

// CommonSequences are frequent amateur-radio fragments, expressed as
// representations.
var CommonSequences = []Pattern{
	{Text: "CQ", Representation: "-.-. --.-", Priority: 10},
	{Text: "DE", Representation: "-.. .", Priority: 10},
	{Text: "73", Representation: "--... ...--", Priority: 9},
	{Text: "5NN", Representation: "..... -. -.", Priority: 9},
	{Text: "599", Representation: "..... ----. ----.", Priority: 8},
	{Text: "QTH", Representation: "--.- - ....", Priority: 7},
	{Text: "QRZ", Representation: "--.- .-. --..", Priority: 7},
	{Text: "QSO", Representation: "--.- ... ---", Priority: 7},
	{Text: "QSL", Representation: "--.- ... .-..", Priority: 7},
	{Text: "TU", Representation: "- ..-", Priority: 8},
	{Text: "GM", Representation: "--. --", Priority: 7},
	{Text: "GA", Representation: "--. .-", Priority: 7},
	{Text: "GE", Representation: "--. .", Priority: 7},
	{Text: "UR", Representation: "..- .-.", Priority: 6},
	{Text: "FB", Representation: "..-. -...", Priority: 6},
	{Text: "ES", Representation: ". ...", Priority: 6},
	{Text: "HR", Representation: ".... .-.", Priority: 5},
}

// Sequencer accumulates recently decoded representations (joined by single
// spaces at character boundaries) and matches the tail against
// CommonSequences, reporting a suggested correction.
type Sequencer struct {
	buffer []string
	limit  int
}

// NewSequencer creates a Sequencer retaining up to limit recent character
// representations (16 if limit <= 0).
func NewSequencer(limit int) *Sequencer {
	if limit <= 0 {
		limit = 16
	}
	return &Sequencer{limit: limit}
}

// Observe records one decoded character's representation. wordBoundary
// resets the buffer, since sequences never span a word space.
func (s *Sequencer) Observe(rep string, wordBoundary bool) {
	if wordBoundary {
		s.buffer = s.buffer[:0]
		return
	}
	s.buffer = append(s.buffer, rep)
	if len(s.buffer) > s.limit {
		s.buffer = s.buffer[len(s.buffer)-s.limit:]
	}
}

// Match reports the highest-priority CommonSequences entry whose
// representation exactly matches the buffered tail, if any.
func (s *Sequencer) Match() (Pattern, bool) {
	if len(s.buffer) == 0 {
		return Pattern{}, false
	}

	joined := joinWithSpaces(s.buffer)
	var best Pattern
	found := false
	for _, p := range CommonSequences {
		if hasSuffixRepresentation(joined, p.Representation) {
			if !found || p.Priority > best.Priority {
				best = p
				found = true
			}
		}
	}
	return best, found
}

func joinWithSpaces(reps []string) string {
	out := reps[0]
	for _, r := range reps[1:] {
		out += " " + r
	}
	return out
}

// hasSuffixRepresentation reports whether joined ends with pattern aligned
// on a character boundary (i.e. joined == pattern or joined ends with
// " "+pattern).
func hasSuffixRepresentation(joined, pattern string) bool {
	if joined == pattern {
		return true
	}
	suffix := " " + pattern
	if len(joined) < len(suffix) {
		return false
	}
	return joined[len(joined)-len(suffix):] == suffix
}
