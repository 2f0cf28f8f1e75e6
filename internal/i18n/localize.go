// Package i18n holds the translated reply texts.
package i18n

import (
	"context"
	"embed"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translations embed.FS

var Bundle *i18n.Bundle

var defaultLanguage = language.Chinese

type localizerKey struct{}

func init() {
	Bundle = RegisterLanguages()
}

// RegisterLanguages loads every embedded message file. Chinese is the default.
func RegisterLanguages() *i18n.Bundle {
	bundle := i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	files, err := translations.ReadDir("translations")
	if err != nil {
		panic(err)
	}
	for _, f := range files {
		data, err := translations.ReadFile("translations/" + f.Name())
		if err != nil {
			panic(err)
		}
		bundle.MustParseMessageFileBytes(data, f.Name())
	}
	return bundle
}

// WithLocalizer attaches a localizer for the given languages to ctx.
func WithLocalizer(ctx context.Context, langs ...string) context.Context {
	return context.WithValue(ctx, localizerKey{}, i18n.NewLocalizer(Bundle, langs...))
}

func LoadLocalizer(ctx context.Context) *i18n.Localizer {
	if l, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return l
	}
	return i18n.NewLocalizer(Bundle, defaultLanguage.String())
}

func Translate(ctx context.Context, messageID string) string {
	str, err := LoadLocalizer(ctx).Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		log.Warnf("Error translating message %s: %s", messageID, err)
	}
	return str
}
