package application

import "lens-recorder/internal/domain"

const aspect16x9 = 16.0 / 9.0

var (
	tier4K = domain.ConstraintTier{
		Name:        "4k",
		Width:       domain.Range{Ideal: 3840, Min: 1280},
		Height:      domain.Range{Ideal: 2160, Min: 720},
		AspectRatio: aspect16x9,
	}
	tierHD = domain.ConstraintTier{
		Name:        "hd",
		Width:       domain.Range{Ideal: 1920, Min: 1280},
		Height:      domain.Range{Ideal: 1080, Min: 720},
		AspectRatio: aspect16x9,
	}
	tierSD = domain.ConstraintTier{
		Name:        "sd",
		Width:       domain.Range{Ideal: 1280, Min: 640},
		Height:      domain.Range{Ideal: 720, Min: 360},
		AspectRatio: aspect16x9,
	}
	tierRelaxed = domain.ConstraintTier{
		Name:  "relaxed",
		Match: domain.FacingIdeal,
	}
	tierAny = domain.ConstraintTier{
		Name:  "unconstrained",
		Match: domain.FacingAny,
	}
)

func exact(t domain.ConstraintTier) domain.ConstraintTier {
	t.Match = domain.FacingExact
	t.Name = "exact-" + t.Name
	return t
}

// InitialTiers используются при первом запуске: сначала лучшее разрешение, затем запрос без ограничений.
func InitialTiers(performance bool) []domain.ConstraintTier {
	if performance {
		return []domain.ConstraintTier{tierHD, tierSD, tierAny}
	}
	return []domain.ConstraintTier{tier4K, tierHD, tierAny}
}

// SwitchTiers сначала требуют точное направление, затем ослабляют его, затем снимают все ограничения.
func SwitchTiers(performance bool) []domain.ConstraintTier {
	if performance {
		return []domain.ConstraintTier{exact(tierHD), exact(tierSD), tierRelaxed, tierAny}
	}
	return []domain.ConstraintTier{exact(tier4K), exact(tierHD), tierRelaxed, tierAny}
}
