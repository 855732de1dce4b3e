package capture

import (
	"fmt"
	"math"

	"github.com/playwright-community/playwright-go"

	"github.com/hoony8355/searcap/internal/models"
)

func regionFromRect(r *playwright.Rect) models.Region {
	if r == nil {
		return models.Region{}
	}
	return models.Region{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// expand grows the region by margin on every side without letting the
// origin go negative.
func expand(r models.Region, margin float64) models.Region {
	if margin <= 0 {
		return r
	}

	out := models.Region{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
	if out.X < 0 {
		out.Width += out.X
		out.X = 0
	}
	if out.Y < 0 {
		out.Height += out.Y
		out.Y = 0
	}
	return out
}

// intersect returns the overlap of a and b, or a zero region when they
// do not overlap.
func intersect(a, b models.Region) models.Region {
	x1 := math.Max(a.X, b.X)
	y1 := math.Max(a.Y, b.Y)
	x2 := math.Min(a.X+a.Width, b.X+b.Width)
	y2 := math.Min(a.Y+a.Height, b.Y+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return models.Region{}
	}
	return models.Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func isEmpty(r models.Region) bool {
	return r.Width <= 0 || r.Height <= 0
}

// regionFromEval converts the result of a page.Evaluate rect expression
// into a Region.
func regionFromEval(v interface{}) (models.Region, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return models.Region{}, fmt.Errorf("unexpected evaluate result type %T", v)
	}

	get := func(key string) (float64, error) {
		switch t := m[key].(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		default:
			return 0, fmt.Errorf("rect field %q missing or not a number (%T)", key, m[key])
		}
	}

	var r models.Region
	var err error
	if r.X, err = get("x"); err != nil {
		return models.Region{}, err
	}
	if r.Y, err = get("y"); err != nil {
		return models.Region{}, err
	}
	if r.Width, err = get("width"); err != nil {
		return models.Region{}, err
	}
	if r.Height, err = get("height"); err != nil {
		return models.Region{}, err
	}
	return r, nil
}
