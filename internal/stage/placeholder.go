package stage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Заглушка рендерится локально и никогда не ходит в сеть.
const (
	placeholderSize   = 512
	placeholderBorder = 8
	placeholderMargin = 40
)

// tinyPlaceholderPNG — однопиксельный PNG на случай сбоя самого рендера.
const tinyPlaceholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

var (
	gradientTop    = color.RGBA{R: 0xfb, G: 0xbf, B: 0x24, A: 0xff}
	gradientBottom = color.RGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff}
	captionRed     = color.RGBA{R: 0xdc, G: 0x26, B: 0x26, A: 0xff}
)

// RenderPlaceholder рисует PNG-заглушку 512×512 для страницы комикса:
// янтарный градиент, черная рамка, перенесенный по строкам заголовок,
// номер изображения и пометка о недоступности сервиса.
// Возвращает изображение в base64.
func RenderPlaceholder(title string, imageNumber int) string {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))

	for y := 0; y < placeholderSize; y++ {
		c := lerpColor(gradientTop, gradientBottom, float64(y)/float64(placeholderSize-1))
		for x := 0; x < placeholderSize; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			if x < placeholderBorder || x >= placeholderSize-placeholderBorder ||
				y < placeholderBorder || y >= placeholderSize-placeholderBorder {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			}
		}
	}

	face := basicfont.Face7x13
	lineHeight := face.Height + 4

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{A: 0xff}),
		Face: face,
	}

	lines := wrapText(drawer, title, placeholderSize-2*placeholderMargin)
	y := placeholderSize/2 - len(lines)*lineHeight/2
	for _, line := range lines {
		drawCentered(drawer, line, y)
		y += lineHeight
	}

	drawer.Src = image.NewUniform(captionRed)
	drawCentered(drawer, "(AI Service Temporarily Unavailable)", placeholderSize-60)

	drawer.Src = image.NewUniform(color.RGBA{A: 0xff})
	drawCentered(drawer, fmt.Sprintf("Image %d", imageNumber), placeholderSize-30)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return tinyPlaceholderPNG
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 0xff,
	}
}

// wrapText разбивает текст на строки, умещающиеся в maxWidth пикселей.
func wrapText(drawer *font.Drawer, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if drawer.MeasureString(candidate).Ceil() > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	return append(lines, current)
}

func drawCentered(drawer *font.Drawer, text string, y int) {
	width := drawer.MeasureString(text).Ceil()
	drawer.Dot = fixed.P((placeholderSize-width)/2, y)
	drawer.DrawString(text)
}
