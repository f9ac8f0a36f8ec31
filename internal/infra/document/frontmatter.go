package document

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/yanqian/ai-notesum/pkg/errors"
)

var frontMatterBlock = regexp.MustCompile(`(?s)\A---\r?\n(.*?)\r?\n?---\r?\n`)

// FrontMatter is a document split into its metadata block and body.
type FrontMatter struct {
	Fields map[string]any
	Body   string
}

// ParseFrontMatter splits text. A document without a block has nil Fields
// and the whole text as Body.
func ParseFrontMatter(text string) (FrontMatter, error) {
	loc := frontMatterBlock.FindStringSubmatchIndex(text)
	if loc == nil {
		return FrontMatter{Body: text}, nil
	}
	raw := text[loc[2]:loc[3]]
	fields := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
			return FrontMatter{}, apperrors.Wrap(apperrors.CodeInvalidInput, "front matter is not valid YAML", err)
		}
	}
	return FrontMatter{Fields: fields, Body: text[loc[1]:]}, nil
}

// RenderFrontMatter encodes fields as a front matter block, keys sorted.
func RenderFrontMatter(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "---\n---\n", nil
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageError, "failed to encode front matter", err)
	}
	return "---\n" + string(out) + "---\n", nil
}
