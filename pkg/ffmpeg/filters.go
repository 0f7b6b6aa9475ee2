package ffmpeg

// Typed constructors for the graph filters the compositor relies on.

// Split duplicates a stream into n outputs.
func Split(n int) Filter {
	return NewFilter("split", P("", Int(n)))
}

// ScaleCover scales to cover w×h, preserving aspect (overflow is cropped later).
func ScaleCover(w, h int) Filter {
	return NewFilter("scale",
		P("w", Int(w)),
		P("h", Int(h)),
		P("force_original_aspect_ratio", Str("increase")),
	)
}

// CropCenter crops a centered w×h window.
func CropCenter(w, h int) Filter {
	return NewFilter("crop", P("w", Int(w)), P("h", Int(h)))
}

// GaussianBlur applies gblur with the given sigma.
func GaussianBlur(sigma float64) Filter {
	return NewFilter("gblur", P("sigma", Float(sigma)))
}

// SquarePixels resets the sample aspect ratio to 1:1.
func SquarePixels() Filter {
	return NewFilter("setsar", P("", Int(1)))
}

// Overlay places the second input at x,y over the first.
func Overlay(x, y Expr) Filter {
	return NewFilter("overlay", P("x", x), P("y", y))
}

// Format converts the pixel format.
func Format(pixFmt string) Filter {
	return NewFilter("format", P("", Str(pixFmt)))
}

// DrawText renders text; params supply font, size, color and position.
func DrawText(text string, params ...Param) Filter {
	return NewFilter("drawtext", append([]Param{P("text", Text(text))}, params...)...)
}
