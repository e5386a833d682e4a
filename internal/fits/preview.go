// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package fits

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/tiff"
)

// Color used in previews for pixels without data
var NoDataColor = colorful.Color{R: 0.25, G: 0, B: 0.25}

// Maps a linear pixel value to [0,1] with the given black and white points and gamma.
// Returns false for NaN.
func previewLevel(v, min, scale float32, gammaInv float64) (float64, bool) {
	if isNaN32(v) {
		return 0, false
	}
	l := float64((v - min) * scale)
	if l < 0 {
		l = 0
	} else if l > 1 {
		l = 1
	}
	if gammaInv != 1.0 {
		l = math.Pow(l, gammaInv)
	}
	return l, true
}

// Write a grayscale FITS image to JPG, using the given min, max and gamma.
func (f *Image) WriteMonoJPGToFile(fileName string, min, max, gamma float32, quality int) error {
	return createAndWrite(fileName, func(w io.Writer) error {
		return f.WriteMonoJPG(w, min, max, gamma, quality)
	})
}

// Write a grayscale FITS image to JPG, using the given min, max and gamma. Values are treated
// as linear light and converted to sRGB. Pixels without data are shown in NoDataColor.
func (f *Image) WriteMonoJPG(writer io.Writer, min, max, gamma float32, quality int) error {
	width, height := f.Width(), f.Height()
	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 1.0 / (max - min)
	gammaInv := float64(1.0 / gamma)
	nr, ng, nb := NoDataColor.RGB255()
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			l, ok := previewLevel(f.Data[yoffset+x], min, scale, gammaInv)
			if !ok {
				img.SetRGBA(x, y, color.RGBA{nr, ng, nb, 255})
				continue
			}
			r, g, b := colorful.LinearRgb(l, l, l).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}

// Write a grayscale FITS image to 16-bit TIFF, using the given min, max and gamma.
func (f *Image) WriteMonoTIFF16ToFile(fileName string, min, max, gamma float32) error {
	return createAndWrite(fileName, func(w io.Writer) error {
		return f.WriteMonoTIFF16(w, min, max, gamma)
	})
}

// Write a grayscale FITS image to 16-bit TIFF, using the given min, max and gamma.
// Pixels without data are written as zero.
func (f *Image) WriteMonoTIFF16(writer io.Writer, min, max, gamma float32) error {
	width, height := f.Width(), f.Height()
	img := image.NewGray16(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 1.0 / (max - min)
	gammaInv := float64(1.0 / gamma)
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			l, _ := previewLevel(f.Data[yoffset+x], min, scale, gammaInv)
			img.SetGray16(x, y, color.Gray16{uint16(l * 65535)})
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}
