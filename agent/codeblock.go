package agent

import (
	"regexp"
	"strings"
)

// CodeBlock is one fenced code block extracted from a message body.
type CodeBlock struct {
	Language string
	Code     string
}

var codeFenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]*)[ \t]*\n(.*?)```")

// ExtractCodeBlocks returns all fenced code blocks in order of appearance.
func ExtractCodeBlocks(body string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range codeFenceRe.FindAllStringSubmatch(body, -1) {
		code := strings.TrimRight(m[2], "\n")
		if strings.TrimSpace(code) == "" {
			continue
		}
		blocks = append(blocks, CodeBlock{
			Language: normalizeLanguage(m[1]),
			Code:     code,
		})
	}
	return blocks
}

// HasCodeFence reports whether the body contains a non-empty fenced block.
func HasCodeFence(body string) bool {
	return len(ExtractCodeBlocks(body)) > 0
}

// CoalesceBlocks merges adjacent blocks sharing a language into one block,
// so a reply split across several same-language fences costs one sandbox
// run. Blocks in different languages stay separate, in order of appearance;
// the executor runs each as its own request.
func CoalesceBlocks(blocks []CodeBlock) []CodeBlock {
	var out []CodeBlock
	for _, b := range blocks {
		if n := len(out); n > 0 && out[n-1].Language == b.Language {
			out[n-1].Code += "\n\n" + b.Code
			continue
		}
		out = append(out, b)
	}
	return out
}

func normalizeLanguage(lang string) string {
	switch strings.ToLower(lang) {
	case "python", "python3", "py":
		return "python"
	case "bash":
		return "bash"
	case "sh", "shell", "":
		return "sh"
	default:
		return strings.ToLower(lang)
	}
}
