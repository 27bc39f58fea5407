package automation

import (
	"fmt"
	"math"
)

// Easing names an interpolation curve
type Easing string

const (
	Linear     Easing = "linear"
	QuadIn     Easing = "quad-in"
	QuadOut    Easing = "quad-out"
	QuadInOut  Easing = "quad-in-out"
	CubicIn    Easing = "cubic-in"
	CubicOut   Easing = "cubic-out"
	CubicInOut Easing = "cubic-in-out"
	SineIn     Easing = "sine-in"
	SineOut    Easing = "sine-out"
	SineInOut  Easing = "sine-in-out"
	ExpoIn     Easing = "expo-in"
	ExpoOut    Easing = "expo-out"
	SmoothStep Easing = "smoothstep"
)

var easings = map[Easing]func(p float64) float64{
	Linear:     func(p float64) float64 { return p },
	QuadIn:     func(p float64) float64 { return p * p },
	QuadOut:    func(p float64) float64 { return 1 - (1-p)*(1-p) },
	QuadInOut:  quadInOut,
	CubicIn:    func(p float64) float64 { return p * p * p },
	CubicOut:   func(p float64) float64 { return 1 - math.Pow(1-p, 3) },
	CubicInOut: cubicInOut,
	SineIn:     func(p float64) float64 { return 1 - math.Cos(p*math.Pi/2) },
	SineOut:    func(p float64) float64 { return math.Sin(p * math.Pi / 2) },
	SineInOut:  func(p float64) float64 { return -(math.Cos(math.Pi*p) - 1) / 2 },
	ExpoIn:     expoIn,
	ExpoOut:    func(p float64) float64 { return 1 - expoIn(1-p) },
	SmoothStep: func(p float64) float64 { return p * p * (3 - 2*p) },
}

func quadInOut(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - math.Pow(-2*p+2, 2)/2
}

func cubicInOut(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	return 1 - math.Pow(-2*p+2, 3)/2
}

// expoIn is normalized so it passes exactly through 0 and 1
func expoIn(p float64) float64 {
	return (math.Pow(2, 10*p) - 1) / 1023
}

// ParseEasing validates an easing name; empty means linear
func ParseEasing(name string) (Easing, error) {
	if name == "" {
		return Linear, nil
	}
	e := Easing(name)
	if _, ok := easings[e]; !ok {
		return "", fmt.Errorf("unknown easing %q", name)
	}
	return e, nil
}

// Curve maps progress p in [0, 1] through the easing
func (e Easing) Curve(p float64) float64 {
	p = math.Max(0, math.Min(1, p))
	f, ok := easings[e]
	if !ok {
		return p
	}
	return f(p)
}

// Ease interpolates from a to b at progress p
func Ease(a, b, p float64, e Easing) float64 {
	if p <= 0 {
		return a
	}
	if p >= 1 {
		return b
	}
	return a + (b-a)*e.Curve(p)
}
