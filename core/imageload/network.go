package imageload

// QualityTier is the effective quality a load resolves to.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
	// QualityAdaptive defers the tier choice to the network estimate.
	QualityAdaptive QualityTier = "adaptive"
)

// NetworkEstimator reports the current network conditions. The browser
// original read navigator.connection; other targets supply their own
// estimate or fall back to the static configuration.
type NetworkEstimator interface {
	// EffectiveType returns one of slow-2g, 2g, 3g, 4g.
	EffectiveType() string
	// SaveData reports whether the user asked for reduced data usage.
	SaveData() bool
}

// StaticEstimator is a fixed NetworkEstimator.
type StaticEstimator struct {
	Type string
	Save bool
}

func (s StaticEstimator) EffectiveType() string { return s.Type }
func (s StaticEstimator) SaveData() bool        { return s.Save }

// resolveTier maps an estimate to a concrete tier. Data saver always
// wins; otherwise slower effective types step the tier down.
func resolveTier(est NetworkEstimator) QualityTier {
	if est.SaveData() {
		return QualityLow
	}
	switch est.EffectiveType() {
	case "slow-2g", "2g":
		return QualityLow
	case "3g":
		return QualityMedium
	default:
		return QualityHigh
	}
}
