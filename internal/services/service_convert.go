package services

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"webclip/internal/apperr"
)

// Converter turns page markup into Markdown: "-" bullets, "---" rules, fenced code.
type Converter struct {
	conv *converter.Converter
}

func NewConverter() *Converter {
	return &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(
					commonmark.WithBulletListMarker("-"),
					commonmark.WithHorizontalRule("---"),
					commonmark.WithCodeBlockFence("```"),
				),
			),
		),
	}
}

// Convert returns the Markdown rendition of markup with a trailing newline.
func (c *Converter) Convert(markup string) (string, error) {
	md, err := c.conv.ConvertString(markup)
	if err != nil {
		return "", apperr.BadInput("convert to markdown: " + err.Error())
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", nil
	}
	return md + "\n", nil
}
