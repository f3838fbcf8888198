package noise

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	mentionRe = regexp.MustCompile(`<\|constrain\|>(@@\S+)`)
	channelRe = regexp.MustCompile(`<\|channel\|>(.*?)<\|message\|>`)
)

// extractJSON scans s for a balanced top-level JSON object starting at its
// first '{' and returns that object plus whatever text follows it.
func extractJSON(s string) (obj string, rest string, ok bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", s, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, only quote/escape matter
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], s[i+1:], true
			}
		}
	}
	return "", s, false
}

// renderChannelEnvelope converts one <|channel|>HEADER<|message|>PAYLOAD
// envelope into the plain text that should reach the transcript, per the
// envelope's header.
func renderChannelEnvelope(header, payload string) string {
	mention := ""
	if m := mentionRe.FindStringSubmatch(header); m != nil {
		mention = m[1]
	}
	h := strings.TrimSpace(header)

	switch {
	case strings.HasPrefix(h, "commentary to=functions"):
		_, rest, ok := extractJSON(payload)
		if !ok {
			return ""
		}
		return strings.TrimSpace(rest)

	case strings.HasPrefix(h, "commentary"):
		obj, _, ok := extractJSON(payload)
		if !ok {
			return ""
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
			return ""
		}
		if stdout, ok := decoded["stdout"].(string); ok {
			return stdout
		}
		return ""

	case strings.HasPrefix(h, "final |json") || strings.HasPrefix(h, "final|json"):
		obj, _, ok := extractJSON(payload)
		if !ok {
			return ""
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
			return ""
		}
		cmd, _ := decoded["cmd"].(string)
		if echoed, ok := parseEchoCommand(cmd); ok {
			if mention != "" {
				return mention + " " + echoed
			}
			return echoed
		}
		return ""

	case strings.HasPrefix(h, "final"):
		if mention != "" {
			return mention + " " + payload
		}
		return payload

	default:
		return ""
	}
}

// parseEchoCommand recognises a shell command of the exact form
// echo "X" and returns X.
func parseEchoCommand(cmd string) (string, bool) {
	cmd = strings.TrimSpace(cmd)
	const prefix = `echo "`
	if !strings.HasPrefix(cmd, prefix) || !strings.HasSuffix(cmd, `"`) {
		return "", false
	}
	return cmd[len(prefix) : len(cmd)-1], true
}
