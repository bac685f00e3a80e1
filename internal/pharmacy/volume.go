package pharmacy

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Tier buckets a monthly prescription volume.
type Tier string

const (
	TierHigh    Tier = "HIGH"
	TierMedium  Tier = "MEDIUM"
	TierLow     Tier = "LOW"
	TierUnknown Tier = "UNKNOWN"
)

const (
	highVolumeThreshold   = 10000
	mediumVolumeThreshold = 5000
	lowVolumeThreshold    = 1000

	// daysPerMonth converts daily fill counts into a monthly estimate.
	daysPerMonth = 30
)

// CalculateRxVolume estimates monthly volume from daily per-drug counts.
func CalculateRxVolume(prescriptions []Prescription) int {
	daily := 0
	for _, p := range prescriptions {
		daily += p.Count
	}
	return daily * daysPerMonth
}

// TierFor classifies a monthly volume. Bands are inclusive on the lower bound.
func TierFor(volume int) Tier {
	switch {
	case volume >= highVolumeThreshold:
		return TierHigh
	case volume >= mediumVolumeThreshold:
		return TierMedium
	case volume >= lowVolumeThreshold:
		return TierLow
	default:
		return TierUnknown
	}
}

// ParseTier maps a case-insensitive label to a Tier.
func ParseTier(value string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(value))) {
	case TierHigh:
		return TierHigh, true
	case TierMedium:
		return TierMedium, true
	case TierLow:
		return TierLow, true
	case TierUnknown:
		return TierUnknown, true
	}
	return TierUnknown, false
}

// VolumeMessage returns the talking point for a tier.
func VolumeMessage(tier Tier) string {
	switch tier {
	case TierHigh:
		return "With your high prescription volume, our AI automation can handle the influx of patient calls and messages, freeing your staff to focus on in-person care and complex pharmaceutical services."
	case TierMedium:
		return "Your pharmacy is in an excellent position to benefit from AI-powered communication automation that scales with your growing patient base without increasing administrative overhead."
	case TierLow:
		return "Our AI solutions can help you deliver responsive patient service 24/7 while keeping operational costs manageable as you grow."
	default:
		return "Pharmesol offers Voice AI and Messaging AI solutions to help pharmacies of all sizes automate patient communications and administrative tasks."
	}
}

var volumePrinter = message.NewPrinter(language.English)

// FormatVolume renders a count with thousands separators ("12,000").
func FormatVolume(volume int) string {
	return volumePrinter.Sprintf("%d", volume)
}

const baseIntroduction = "Pharmesol provides Voice AI and Messaging AI solutions specifically designed for pharmacies. Our AI-enabled pharmacy assistant automates frequent conversations and administrative tasks, helping you handle patient inquiries, prescription refills, appointment scheduling, and other routine interactions efficiently. Using advanced LLM technology tailored for pharmaceutical contexts, we help pharmacies reduce staff workload, improve response times, and deliver exceptional patient service 24/7."

// Introduction describes Pharmesol, tailored to the pharmacy's volume when known.
func Introduction(p *Pharmacy) string {
	if p == nil || p.RxVolume == 0 {
		return baseIntroduction
	}
	volume := FormatVolume(p.RxVolume)
	switch TierFor(p.RxVolume) {
	case TierHigh:
		return baseIntroduction + " With your impressive volume of approximately " + volume + " prescriptions per month, our AI solutions can significantly reduce the administrative burden on your team, allowing them to focus on high-value patient care while we handle routine inquiries and communications at scale."
	case TierMedium:
		return baseIntroduction + " Processing around " + volume + " prescriptions monthly, you're in an excellent position to benefit from AI automation. Our solutions can help you manage growing patient communication demands without proportionally increasing staff, positioning your pharmacy for efficient growth."
	case TierLow:
		return baseIntroduction + " Even at " + volume + " prescriptions per month, our AI solutions can free up your team's time by handling routine calls and messages, allowing you to deliver more personalized service to your patients while keeping operational costs manageable."
	default:
		return baseIntroduction
	}
}
