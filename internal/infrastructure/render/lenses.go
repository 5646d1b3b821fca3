package render

import (
	"fmt"
	"image"
	"slices"
	"sort"

	"golang.org/x/image/draw"
)

var lenses = map[string]Lens{
	"grayscale": LensFunc(grayscale),
	"sepia":     LensFunc(sepia),
}

// LensByName возвращает встроенную линзу. Пустое имя или "none" - без линзы.
func LensByName(name string) (Lens, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	l, ok := lenses[name]
	if !ok {
		return nil, fmt.Errorf("unknown lens %q, available: %v", name, LensNames())
	}
	return l, nil
}

// LensNames возвращает список встроенных линз.
func LensNames() []string {
	names := make([]string, 0, len(lenses)+1)
	for n := range lenses {
		names = append(names, n)
	}
	sort.Strings(names)
	return slices.Insert(names, 0, "none")
}

func grayscale(src image.Image) (image.Image, error) {
	dst := image.NewGray(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

func sepia(src image.Image) (image.Image, error) {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	for i := 0; i+3 < len(dst.Pix); i += 4 {
		r, g, bl := float64(dst.Pix[i]), float64(dst.Pix[i+1]), float64(dst.Pix[i+2])
		dst.Pix[i] = clampByte(0.393*r + 0.769*g + 0.189*bl)
		dst.Pix[i+1] = clampByte(0.349*r + 0.686*g + 0.168*bl)
		dst.Pix[i+2] = clampByte(0.272*r + 0.534*g + 0.131*bl)
	}
	return dst, nil
}

func clampByte(v float64) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}
