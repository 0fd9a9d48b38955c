package timeline

// DefaultVelocityEpsilon is the smallest sample spacing (seconds) that produces
// a new velocity estimate.
const DefaultVelocityEpsilon = 1e-3

// EstimateVelocity returns the finite-difference velocity between two samples.
// When the samples are closer than eps in time, prev is returned unchanged.
func EstimateVelocity(prevPos Vec2, prevTime float64, newPos Vec2, newTime float64, prev Vec2, eps float64) Vec2 {
	dt := newTime - prevTime
	if dt < eps {
		return prev
	}
	return Vec2{
		X: (newPos.X - prevPos.X) / dt,
		Y: (newPos.Y - prevPos.Y) / dt,
	}
}
