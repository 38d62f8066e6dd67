package vacuum

// Feature is a capability flag in the entity's supported-features bitmask.
type Feature uint32

// Capability flags mirroring the platform's vacuum feature set.
const (
	FeatureState Feature = 1 << iota
	FeatureBattery
	FeatureLocate
	FeatureReturnHome
	FeatureStart
	FeatureStop
	FeaturePause
	FeatureFanSpeed
)

// SupportedFeatures is the static capability set of a Dreame 1C entity.
// It never varies at runtime.
const SupportedFeatures = FeatureState |
	FeatureBattery |
	FeatureLocate |
	FeatureReturnHome |
	FeatureStart |
	FeatureStop |
	FeaturePause |
	FeatureFanSpeed

// Has reports whether the bitmask contains the given feature.
func (f Feature) Has(feature Feature) bool {
	return f&feature != 0
}
