package features

import "image"

//NPDLen returns the number of normalized pixel difference features of an image with n pixels.
func NPDLen(n int) int {
	return n * (n - 1) / 2
}

//NPD extracts normalized pixel difference features: for every pair of pixels i < j
//in row major order the value (p_i - p_j) / (p_i + p_j), 0 when both pixels are black.
//A 24x24 image yields 165600 features in [-1, 1].
func NPD(img *image.Gray) []float64 {
	bounds := img.Bounds()
	pixels := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixels = append(pixels, float64(img.GrayAt(x, y).Y))
		}
	}

	result := make([]float64, 0, NPDLen(len(pixels)))
	for i := 0; i < len(pixels); i++ {
		for j := i + 1; j < len(pixels); j++ {
			sum := pixels[i] + pixels[j]
			if sum == 0 {
				result = append(result, 0)
				continue
			}
			result = append(result, (pixels[i]-pixels[j])/sum)
		}
	}
	return result
}
