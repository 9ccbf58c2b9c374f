package policy

import "github.com/eliteGoblin/focusd/feedgate/internal/domain"

// BuiltinApps returns the apps every registry starts with.
// On Android the process name equals the package ID, so ProcessNames reuse it.
func BuiltinApps() []domain.MonitoredApp {
	return []domain.MonitoredApp{
		{
			ID:                "com.google.android.youtube",
			Name:              "YouTube",
			TargetPhrases:     []string{"Shorts"},
			ProcessNames:      []string{"com.google.android.youtube"},
			DailyRelaxedQuota: DefaultRelaxedQuota,
			Provenance:        domain.ProvenanceBuiltin,
		},
		{
			ID:                "com.instagram.android",
			Name:              "Instagram",
			TargetPhrases:     []string{"Reels"},
			ProcessNames:      []string{"com.instagram.android"},
			DailyRelaxedQuota: DefaultRelaxedQuota,
			Provenance:        domain.ProvenanceBuiltin,
		},
		{
			ID:                "com.facebook.katana",
			Name:              "Facebook",
			TargetPhrases:     []string{"Reels", "Watch"},
			ProcessNames:      []string{"com.facebook.katana"},
			DailyRelaxedQuota: DefaultRelaxedQuota,
			Provenance:        domain.ProvenanceBuiltin,
		},
		{
			// The whole app is the feed: no phrase, gated as soon as it is open.
			ID:                "com.zhiliaoapp.musically",
			Name:              "TikTok",
			ProcessNames:      []string{"com.zhiliaoapp.musically"},
			DailyRelaxedQuota: DefaultRelaxedQuota,
			ChallengeExempt:   true,
			Provenance:        domain.ProvenanceBuiltin,
		},
	}
}
