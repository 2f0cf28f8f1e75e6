package prompt

import (
	"testing"

	"github.com/massmux/QwenImageBot/internal"
	"github.com/stretchr/testify/assert"
)

func newTestParser() *Parser {
	return &Parser{
		Ratios:                internal.DefaultRatios(),
		DefaultRatio:          "1:1",
		Models:                []string{"wan2.2-t2i-flash", "wan2.2-t2i-plus"},
		DefaultModel:          "wan2.2-t2i-flash",
		DefaultNegativePrompt: "低画质",
	}
}

func TestExtractImageSizeKnownRatios(t *testing.T) {
	p := newTestParser()
	for ratio, d := range p.Ratios {
		assert.Equal(t, d.String(), p.ExtractImageSize("猫 --ar "+ratio), ratio)
	}
}

func TestExtractImageSizeFallsBackToDefault(t *testing.T) {
	p := newTestParser()
	for _, text := range []string{"猫", "猫 --ar 5:7", "猫 --ar", "猫 --ar x:y", "猫 --ar16:9"} {
		assert.Equal(t, "1328x1328", p.ExtractImageSize(text), text)
	}
}

func TestExtractRatio(t *testing.T) {
	p := newTestParser()
	assert.Equal(t, "16:9", p.ExtractRatio("猫 --ar 16:9"))
	assert.Equal(t, "5:7", p.ExtractRatio("猫 --ar 5:7"))
	assert.Equal(t, "1:1", p.ExtractRatio("猫"))
}

func TestParseExample(t *testing.T) {
	r := newTestParser().Parse("一只猫 --ar 16:9 --plus")
	assert.Equal(t, "一只猫", r.Prompt)
	assert.Equal(t, "1664x928", r.Size)
	assert.Equal(t, "16:9", r.Ratio)
	assert.Contains(t, r.Model, "plus")
}

func TestParseWithoutFlags(t *testing.T) {
	r := newTestParser().Parse("  一只  可爱的 小猫 ")
	assert.Equal(t, "一只 可爱的 小猫", r.Prompt)
	assert.Equal(t, "wan2.2-t2i-flash", r.Model)
	assert.Equal(t, "1328x1328", r.Size)
	assert.Equal(t, "低画质", r.NegativePrompt)
}

func TestExtractModel(t *testing.T) {
	p := newTestParser()
	p.Models = []string{"qwen-image", "Qwen-Image-PLUS", "wan-FLASH"}
	p.DefaultModel = "qwen-image"

	assert.Equal(t, "Qwen-Image-PLUS", p.ExtractModel("猫 --plus"))
	assert.Equal(t, "wan-FLASH", p.ExtractModel("猫 --flash"))
	assert.Equal(t, "wan-FLASH", p.ExtractModel("猫 --plus --flash"), "flash is checked first")
	assert.Equal(t, "qwen-image", p.ExtractModel("猫 --plusultra"))
	assert.Equal(t, "qwen-image", p.ExtractModel("猫"))

	p.Models = []string{"qwen-image"}
	assert.Equal(t, "qwen-image", p.ExtractModel("猫 --plus"), "no matching model")
}

func TestExtractNegativePrompt(t *testing.T) {
	p := newTestParser()
	assert.Equal(t, "模糊, 变形", p.ExtractNegativePrompt("猫 --负面提示：模糊, 变形"))
	assert.Equal(t, "模糊", p.ExtractNegativePrompt("猫 --负面提示：模糊 --ar 16:9"))
	assert.Equal(t, "模糊", p.ExtractNegativePrompt("猫 --负面提示:模糊"))
	assert.Equal(t, "低画质", p.ExtractNegativePrompt("猫 --负面提示： --plus"))
	assert.Equal(t, "低画质", p.ExtractNegativePrompt("猫"))
}

func TestCleanPrompt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"一只猫 --ar 16:9 --plus", "一只猫"},
		{"--flash 海边 日落\n--ar 3:4", "海边 日落"},
		{"城市夜景 --负面提示：模糊, 变形 --ar 16:9", "城市夜景"},
		{"城市夜景 --负面提示：模糊", "城市夜景"},
		{"猫 --ar 5:7", "猫"},
		{"猫 --ar", "猫 --ar"},
		{"--plus", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPrompt(tt.in), tt.in)
	}
}

func TestCleanPromptIdempotent(t *testing.T) {
	inputs := []string{
		"一只猫 --ar 16:9 --plus",
		"--ar --ar 1:1 1:1 猫",
		"--pl--plusus 狗",
		"a  --负面提示：x --负面提示：y  b",
		"  多余   空格\t\t和换行\n ",
		"--ar 16:9--plus",
	}
	for _, in := range inputs {
		once := CleanPrompt(in)
		assert.Equal(t, once, CleanPrompt(once), in)
	}
}

func TestEditParserHasNoDefaultNegativePrompt(t *testing.T) {
	q := internal.QwenConfiguration{
		Ratios:                internal.DefaultRatios(),
		DefaultRatio:          "1:1",
		EditModels:            []string{"qwen-image-edit", "qwen-image-edit-plus"},
		DefaultEditModel:      "qwen-image-edit",
		DefaultNegativePrompt: "低画质",
	}
	assert.Equal(t, "低画质", NewGenerateParser(q).Parse("猫").NegativePrompt)

	p := NewEditParser(q)
	assert.Empty(t, p.Parse("换成黑白").NegativePrompt)
	assert.Equal(t, "模糊", p.Parse("换成黑白 --负面提示：模糊").NegativePrompt)
	assert.Equal(t, "qwen-image-edit-plus", p.Parse("换成黑白 --plus").Model)
}
