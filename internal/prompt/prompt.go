// Package prompt turns a free-form draw or edit instruction into a structured request.
// Parsing never fails: flags that do not match fall back to the configured defaults.
package prompt

import (
	"regexp"
	"strings"

	"github.com/massmux/QwenImageBot/internal"
	log "github.com/sirupsen/logrus"
)

const NegativePromptMarker = "--负面提示："

var (
	ratioRegex    = regexp.MustCompile(`--ar\s+(\d+:\d+)`)
	modelRegex    = regexp.MustCompile(`--(?:plus|flash)\b`)
	negativeRegex = regexp.MustCompile(`(?s)--负面提示[：:](.*?)\s*(?:--|$)`)
	spaceRegex    = regexp.MustCompile(`\s+`)
	flashRegex    = regexp.MustCompile(`--flash\b`)
	plusRegex     = regexp.MustCompile(`--plus\b`)
)

// modelFlags is checked in order, the first flag with a matching model wins.
var modelFlags = []struct {
	name  string
	regex *regexp.Regexp
}{
	{"flash", flashRegex},
	{"plus", plusRegex},
}

type Parser struct {
	Ratios                map[string]internal.Dimension
	DefaultRatio          string
	Models                []string
	DefaultModel          string
	DefaultNegativePrompt string
}

// Request is the result of parsing one instruction.
type Request struct {
	Prompt         string
	Size           string
	Ratio          string
	Model          string
	NegativePrompt string
}

// NewGenerateParser returns a parser over the text-to-image models.
func NewGenerateParser(q internal.QwenConfiguration) *Parser {
	return &Parser{
		Ratios:                q.Ratios,
		DefaultRatio:          q.DefaultRatio,
		Models:                q.Models,
		DefaultModel:          q.DefaultModel,
		DefaultNegativePrompt: q.DefaultNegativePrompt,
	}
}

// NewEditParser returns a parser over the image edit models. Edits carry a
// negative prompt only when the instruction names one.
func NewEditParser(q internal.QwenConfiguration) *Parser {
	p := NewGenerateParser(q)
	p.Models = q.EditModels
	p.DefaultModel = q.DefaultEditModel
	p.DefaultNegativePrompt = ""
	return p
}

func (p *Parser) Parse(text string) Request {
	r := Request{
		Prompt:         CleanPrompt(text),
		Size:           p.ExtractImageSize(text),
		Ratio:          p.ExtractRatio(text),
		Model:          p.ExtractModel(text),
		NegativePrompt: p.ExtractNegativePrompt(text),
	}
	log.Debugf("[prompt] parsed %q => prompt=%q size=%s model=%s", text, r.Prompt, r.Size, r.Model)
	return r
}

// ExtractImageSize returns "{width}x{height}" for the --ar ratio, or the default ratio's size.
func (p *Parser) ExtractImageSize(text string) string {
	if m := ratioRegex.FindStringSubmatch(text); m != nil {
		if d, ok := p.Ratios[m[1]]; ok {
			return d.String()
		}
	}
	return p.Ratios[p.DefaultRatio].String()
}

// ExtractRatio returns the ratio as typed by the user, or the default ratio.
func (p *Parser) ExtractRatio(text string) string {
	if m := ratioRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return p.DefaultRatio
}

// ExtractModel picks the first configured model whose name contains the
// requested flag (--flash before --plus), or the default model.
func (p *Parser) ExtractModel(text string) string {
	for _, flag := range modelFlags {
		if !flag.regex.MatchString(text) {
			continue
		}
		for _, model := range p.Models {
			if strings.Contains(strings.ToLower(model), flag.name) {
				return model
			}
		}
	}
	return p.DefaultModel
}

// ExtractNegativePrompt returns the text following the negative prompt marker
// up to the next flag, or the default negative prompt.
func (p *Parser) ExtractNegativePrompt(text string) string {
	if m := negativeRegex.FindStringSubmatch(text); m != nil {
		if negative := strings.TrimSpace(m[1]); negative != "" {
			return negative
		}
	}
	return p.DefaultNegativePrompt
}

// CleanPrompt strips all recognized flags and their arguments and collapses whitespace.
func CleanPrompt(text string) string {
	clean := text
	for {
		next := cleanOnce(clean)
		if next == clean {
			return clean
		}
		clean = next
	}
}

func cleanOnce(text string) string {
	for {
		loc := negativeRegex.FindStringSubmatchIndex(text)
		if loc == nil {
			break
		}
		// keep the terminating "--" of the following flag
		text = text[:loc[0]] + " " + text[loc[3]:]
	}
	text = ratioRegex.ReplaceAllString(text, " ")
	text = modelRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}
