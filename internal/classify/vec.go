package classify

import "math"

// Vec3 is a three-axis sensor reading, acceleration in g or angular
// velocity in degrees per second.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Normalize returns the unit vector, or ok=false for a zero vector.
func (v Vec3) Normalize() (Vec3, bool) {
	m := v.Magnitude()
	if m == 0 {
		return Vec3{}, false
	}
	return v.Scale(1 / m), true
}

// Mean averages a sample set component-wise.
func Mean(samples []Vec3) Vec3 {
	if len(samples) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, s := range samples {
		sum.X += s.X
		sum.Y += s.Y
		sum.Z += s.Z
	}
	return sum.Scale(1 / float64(len(samples)))
}

// Orientation is an absolute attitude reading in degrees.
type Orientation struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}
