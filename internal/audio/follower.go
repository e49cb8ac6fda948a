package audio

// Yawn volume mapping. Openness is the mouth-open metric rescaled so that
// OpenFloor reads 0 and OpenFloor+OpenRange reads 1.
const (
	OpenFloor     = 0.10
	OpenRange     = 0.25
	YawnThreshold = 0.3

	quietVolume  = 0.2
	lostVolume   = 0.15
	yawnVolumeLo = 0.35
	volumeRate   = 0.1
)

// Openness rescales a mouth-open metric into 0..1.
func Openness(mouthOpen float64) float64 {
	return clamp01((mouthOpen - OpenFloor) / OpenRange)
}

// TargetVolume is the volume a yawn of the given openness asks for.
// Below the yawn threshold the sample idles at a quiet volume; above it
// openness 0.3..1 maps linearly onto 0.35..1.
func TargetVolume(openness float64) float64 {
	if openness <= YawnThreshold {
		return quietVolume
	}
	t := (openness - YawnThreshold) / (1 - YawnThreshold)
	return yawnVolumeLo + t*(1-yawnVolumeLo)
}

// VolumeFollower eases a volume toward the yawn target, one step per frame.
type VolumeFollower struct {
	volume float64
}

// NewVolumeFollower starts at the quiet volume.
func NewVolumeFollower() *VolumeFollower {
	return &VolumeFollower{volume: quietVolume}
}

// Step moves 10% of the way toward the target for mouthOpen and returns
// the new volume and whether the face counts as yawning.
func (f *VolumeFollower) Step(mouthOpen float64) (volume float64, yawning bool) {
	open := Openness(mouthOpen)
	f.volume = lerp(f.volume, TargetVolume(open), volumeRate)
	return f.volume, open > YawnThreshold
}

// Lost moves 10% of the way toward the volume used while no face is seen
// and returns the new volume.
func (f *VolumeFollower) Lost() float64 {
	f.volume = lerp(f.volume, lostVolume, volumeRate)
	return f.volume
}

// Volume returns the current volume.
func (f *VolumeFollower) Volume() float64 {
	return f.volume
}
