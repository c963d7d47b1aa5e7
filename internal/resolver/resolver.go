// Package resolver derives the provider and API key for a model name
// from the current settings. Resolution is pure and is re-run on every
// send, since settings can change between turns.
package resolver

import (
	"strings"

	"wisp/internal/models"
)

// ResolveKey returns the API key for modelName. The active
// model/provider pair is trusted when it matches; otherwise the
// configured providers are scanned in stored order and the first whose
// model list contains an exact match wins. With no match at all, the
// first configured provider's key (or "") is returned so a send can
// still be attempted.
func ResolveKey(settings models.Settings, modelName string) string {
	if settings.ActiveModel == modelName && settings.ActiveProvider != "" {
		for _, p := range settings.Providers {
			if strings.EqualFold(p.Provider, settings.ActiveProvider) {
				return p.Key
			}
		}
	}

	for _, p := range settings.Providers {
		if providerHasModel(p, modelName) {
			return p.Key
		}
	}

	if len(settings.Providers) > 0 {
		return settings.Providers[0].Key
	}
	return ""
}

// ResolveProvider returns the canonical provider id for modelName, or
// models.ProviderUnknown when no configured provider lists it. The
// sentinel is deliberate: an unmatched model must not silently default
// to any provider.
func ResolveProvider(settings models.Settings, modelName string) models.ProviderID {
	if settings.ActiveModel == modelName && settings.ActiveProvider != "" {
		return models.NormalizeProvider(settings.ActiveProvider)
	}

	for _, p := range settings.Providers {
		if providerHasModel(p, modelName) {
			return models.NormalizeProvider(p.Provider)
		}
	}

	return models.ProviderUnknown
}

func providerHasModel(p models.ProviderConfig, modelName string) bool {
	for _, m := range strings.Split(p.Models, ",") {
		if strings.TrimSpace(m) == modelName {
			return true
		}
	}
	return false
}
