package posture

import iface "PostureServer/interface"

/* landmark indices used by the rule
23: Left Hip
24: Right Hip
25: Left Knee
26: Right Knee
*/
const (
	LeftHip   = 23
	RightHip  = 24
	LeftKnee  = 25
	RightKnee = 26
)

// SittingThreshold is the knee-below-hip distance, in normalized image heights,
// under which a pose counts as sitting.
const SittingThreshold = 0.15

// HipKneeGap returns the mean knee y minus the mean hip y.
func HipKneeGap(l *iface.LandmarkSet) float64 {
	hipY := (l[LeftHip].Y + l[RightHip].Y) / 2
	kneeY := (l[LeftKnee].Y + l[RightKnee].Y) / 2
	return kneeY - hipY
}

// Classify labels a pose. A nil set is Undetected.
func Classify(l *iface.LandmarkSet) Label {
	if l == nil {
		return Undetected
	}
	if HipKneeGap(l) < SittingThreshold {
		return Sitting
	}
	return Standing
}
