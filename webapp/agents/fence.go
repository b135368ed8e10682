package agents

import "strings"

const fenceMarker = "```"

const fenceFeedback = "Reply with the complete code in exactly one fenced code block"

func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fenceMarker)
}

/**
ExtractCode pulls the code out of a generation reply. A reply without fences is taken as code. A reply
with exactly one complete fenced block gives that block's body, whatever chatter surrounds it.
Anything else (several blocks, an unclosed fence, nothing at all) is a *CodeDefect.
*/
func ExtractCode(reply string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")

	var fences []int
	for i, line := range lines {
		if isFenceLine(line) {
			fences = append(fences, i)
		}
	}

	switch len(fences) {
	case 0:
		code := strings.TrimSpace(reply)
		if code == "" {
			return "", &CodeDefect{Message: "No code was generated. " + fenceFeedback}
		}
		return code, nil
	case 2:
		if strings.TrimSpace(lines[fences[1]]) != fenceMarker {
			return "", &CodeDefect{Message: "The code block is not closed properly. " + fenceFeedback}
		}
		body := strings.Join(lines[fences[0]+1:fences[1]], "\n")
		if strings.TrimSpace(body) == "" {
			return "", &CodeDefect{Message: "The code block is empty. " + fenceFeedback}
		}
		return strings.TrimRight(body, " \t\n"), nil
	case 1:
		return "", &CodeDefect{Message: "The code block is not closed. " + fenceFeedback}
	default:
		return "", &CodeDefect{Message: "The reply contains more than one code block. " + fenceFeedback}
	}
}
