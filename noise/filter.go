// Package noise implements the streaming filter that strips model-emitted
// channel framing and meta tags from a chat driver's token stream before it
// reaches an agent's transcript, while leaving fenced code blocks and
// ordinary text untouched.
package noise

import "strings"

// channelRe and mentionRe are defined in envelope.go.

// blockMode describes how a paired <|kind_start|>...<|kind_end|> block's
// body should be handled once it closes.
type blockMode int

const (
	modeNone blockMode = iota
	modeStrip
	modeUnwrap
)

var pairedKinds = map[string]blockMode{
	"memory":      modeStrip,
	"analysis":    modeStrip,
	"tool_call":   modeStrip,
	"tool_result": modeUnwrap,
	"final":       modeUnwrap,
}

// Filter incrementally removes channel envelopes and meta-tag framing from a
// stream of text chunks. Zero value is ready to use.
type Filter struct {
	pending string // bytes not yet forming a complete line

	inFence bool

	blockMode blockMode
	blockEnd  string // the "<|kind_end|>" tag that closes the current block
}

// Feed appends chunk to the filter and returns the text that is now safe to
// emit: every complete line accumulated so far, fully processed. The final,
// not-yet-newline-terminated line is held back until it completes or Flush
// is called, which protects fence markers, paired blocks, and tag tokens
// split across chunk boundaries.
func (f *Filter) Feed(chunk string) string {
	f.pending += chunk

	var out strings.Builder
	for {
		idx := strings.IndexByte(f.pending, '\n')
		if idx == -1 {
			break
		}
		line := f.pending[:idx]
		f.pending = f.pending[idx+1:]
		out.WriteString(f.processLine(line))
		out.WriteByte('\n')
	}
	return out.String()
}

// Flush processes and returns any remaining partial line. An unterminated
// fence is preserved verbatim; an unterminated strip-mode block is dropped,
// matching its in-progress handling; an unterminated unwrap-mode block is
// preserved verbatim.
func (f *Filter) Flush() string {
	if f.pending == "" {
		return ""
	}
	line := f.pending
	f.pending = ""

	if f.inFence {
		return line
	}
	if f.blockMode == modeUnwrap {
		return line
	}
	if f.blockMode == modeStrip {
		return ""
	}
	return f.processLine(line)
}

func (f *Filter) processLine(line string) string {
	if f.blockMode != modeNone {
		return f.continueBlock(line)
	}

	trimmed := strings.TrimSpace(line)
	if f.inFence {
		if strings.HasPrefix(trimmed, "```") {
			f.inFence = false
		}
		return line
	}
	if strings.HasPrefix(trimmed, "```") {
		f.inFence = true
		return line
	}

	if kind, before, after, ok := findBlockStart(line); ok {
		mode := pairedKinds[kind]
		endTag := "<|" + kind + "_end|>"
		if body, rest, closed := strings.Cut(after, endTag); closed {
			result := before
			if mode == modeUnwrap {
				result += body
			}
			return result + f.processLine(rest)
		}
		f.blockMode = mode
		f.blockEnd = endTag
		if mode == modeUnwrap {
			return before + after
		}
		return before
	}

	if m := channelRe.FindStringSubmatchIndex(line); m != nil {
		header := line[m[2]:m[3]]
		payload := line[m[1]:]
		before := line[:m[0]]
		return before + renderChannelEnvelope(header, payload)
	}

	return line
}

// continueBlock handles a line encountered while inside a paired block's
// body, closing the block if its end tag appears on this line.
func (f *Filter) continueBlock(line string) string {
	if body, rest, closed := strings.Cut(line, f.blockEnd); closed {
		mode := f.blockMode
		f.blockMode = modeNone
		f.blockEnd = ""
		result := ""
		if mode == modeUnwrap {
			result = body
		}
		return result + f.processLine(rest)
	}
	if f.blockMode == modeUnwrap {
		return line
	}
	return ""
}

// findBlockStart looks for the first <|kind_start|> tag on line, for kind in
// pairedKinds. It returns the recognised kind, the text before the tag, and
// the text after it.
func findBlockStart(line string) (kind, before, after string, ok bool) {
	bestIdx := -1
	for k := range pairedKinds {
		tag := "<|" + k + "_start|>"
		if idx := strings.Index(line, tag); idx != -1 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				kind = k
				before = line[:idx]
				after = line[idx+len(tag):]
			}
		}
	}
	return kind, before, after, bestIdx != -1
}
