package imaging

import (
	"image"
	"image/color"
	"testing"
)

func countValue(img *image.Gray, v uint8) int {
	n := 0
	for _, p := range img.Pix {
		if p == v {
			n++
		}
	}
	return n
}

func TestGrayscale(t *testing.T) {
	img := solidImage(10, 8, color.RGBA{255, 0, 0, 255})
	gray := Grayscale(img)

	if gray.Bounds() != image.Rect(0, 0, 10, 8) {
		t.Errorf("bounds: got %v", gray.Bounds())
	}
	// 0.3 * 255
	if v := gray.GrayAt(3, 3).Y; v < 76 || v > 77 {
		t.Errorf("red luminance: got %d, want about 76.5", v)
	}

	sub := solidImage(40, 40, color.White).SubImage(image.Rect(10, 10, 20, 25))
	if got := Grayscale(sub).Bounds(); got != image.Rect(0, 0, 10, 15) {
		t.Errorf("sub-image not rebased: %v", got)
	}

	g := grayFunc(5, 5, func(int, int) uint8 { return 9 })
	if Grayscale(g) != g {
		t.Error("origin-anchored gray input should be returned as is")
	}
}

func TestBlur_UniformStaysUniform(t *testing.T) {
	gray := grayFunc(30, 30, func(int, int) uint8 { return 100 })
	out := Blur(gray, DefaultBlurRadius)
	for i, v := range out.Pix {
		if v < 99 || v > 101 {
			t.Fatalf("pixel %d: got %d, want about 100", i, v)
		}
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	uniform := grayFunc(20, 20, func(int, int) uint8 { return 128 })
	if n := countValue(AdaptiveThreshold(uniform, 11, 2, false), 255); n != 400 {
		t.Errorf("uniform binary: %d of 400 pixels set", n)
	}
	if n := countValue(AdaptiveThreshold(uniform, 11, 2, true), 255); n != 0 {
		t.Errorf("uniform inverse: %d pixels set, want 0", n)
	}

	// Dark square on light paper.
	square := grayFunc(60, 60, func(x, y int) uint8 {
		if x >= 20 && x < 40 && y >= 20 && y < 40 {
			return 20
		}
		return 240
	})
	inv := AdaptiveThreshold(square, 11, 2, true)
	if inv.GrayAt(20, 30).Y != 255 || inv.GrayAt(39, 30).Y != 255 {
		t.Error("square border pixels should be foreground")
	}
	if inv.GrayAt(5, 5).Y != 0 || inv.GrayAt(15, 30).Y != 0 {
		t.Error("paper should be background")
	}

	// Even block sizes are rounded up.
	if got := AdaptiveThreshold(square, 10, 2, true).Bounds(); got != square.Bounds() {
		t.Errorf("bounds: got %v", got)
	}
}

func TestAdaptiveThreshold_GaussianWindow(t *testing.T) {
	// Bright square on a dark background. The window is Gaussian weighted,
	// so a pixel five columns out is barely pulled toward the square while
	// one three columns out falls well below its local threshold.
	gray := grayFunc(60, 60, func(x, y int) uint8 {
		if x >= 20 && x < 40 && y >= 10 && y < 50 {
			return 230
		}
		return 40
	})
	out := AdaptiveThreshold(gray, 11, 5, false)
	if v := out.GrayAt(15, 30).Y; v != 255 {
		t.Errorf("five columns out: got %d, want 255", v)
	}
	if v := out.GrayAt(17, 30).Y; v != 0 {
		t.Errorf("three columns out: got %d, want 0", v)
	}
	if v := out.GrayAt(30, 30).Y; v != 255 {
		t.Errorf("square interior: got %d, want 255", v)
	}
}

func TestCLAHE(t *testing.T) {
	uniform := grayFunc(64, 64, func(int, int) uint8 { return 90 })
	out := CLAHE(uniform, 3, 8)
	first := out.Pix[0]
	for i, v := range out.Pix {
		if v != first {
			t.Fatalf("uniform input mapped unevenly at %d: %d vs %d", i, v, first)
		}
	}

	// Two close grey levels are pulled apart.
	lowContrast := grayFunc(64, 64, func(x, _ int) uint8 {
		if x < 32 {
			return 100
		}
		return 110
	})
	eq := CLAHE(lowContrast, 40, 1)
	left, right := int(eq.GrayAt(5, 5).Y), int(eq.GrayAt(60, 5).Y)
	if right-left <= 30 {
		t.Errorf("contrast not increased: left=%d right=%d", left, right)
	}

	if got := CLAHE(image.NewGray(image.Rect(0, 0, 0, 0)), 3, 8).Bounds(); !got.Empty() {
		t.Errorf("empty input: got %v", got)
	}
}

func TestMorphology(t *testing.T) {
	dot := grayFunc(11, 11, func(x, y int) uint8 {
		if x == 5 && y == 5 {
			return 255
		}
		return 0
	})

	dilated := Dilate(dot, 1)
	if n := countValue(dilated, 255); n != 9 {
		t.Errorf("Dilate: got %d pixels, want 9", n)
	}
	if n := countValue(Erode(dilated, 1), 255); n != 1 {
		t.Errorf("Erode of 3x3 block: got %d pixels, want 1", n)
	}
	if n := countValue(MorphOpen(dot, 1), 255); n != 0 {
		t.Errorf("MorphOpen should remove an isolated pixel, %d left", n)
	}

	holed := grayFunc(11, 11, func(x, y int) uint8 {
		if x == 5 && y == 5 {
			return 0
		}
		return 255
	})
	if n := countValue(MorphClose(holed, 1), 0); n != 0 {
		t.Errorf("MorphClose should fill a one-pixel hole, %d left", n)
	}
}

func TestBinarize(t *testing.T) {
	gray := grayFunc(4, 1, func(x, _ int) uint8 { return []uint8{0, 100, 200, 255}[x] })
	out := Binarize(gray)
	want := []uint8{0, 0, 255, 255}
	for x, w := range want {
		if got := out.GrayAt(x, 0).Y; got != w {
			t.Errorf("x=%d: got %d, want %d", x, got, w)
		}
	}
}
