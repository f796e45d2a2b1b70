package catalog

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

type seedEntry struct {
	name     string
	version  model.Version
	category string
	critical bool
}

// builtIn is the catalog shipped with the tracker. Order defines the ids.
var builtIn = []seedEntry{
	{"API", model.VersionV1, "Core", true},
	{"Universal Script", model.VersionV1, "Core", true},
	{"Webhooks", model.VersionV1, "Core", false},
	{"Stripe", model.VersionV1, "Payment", true},
	{"PayPal", model.VersionV1, "Payment", true},
	{"Braintree", model.VersionV1, "Payment", false},
	{"Authorize.net", model.VersionV1, "Payment", false},
	{"Recurly", model.VersionV1, "Payment", false},
	{"Chargebee", model.VersionV1, "Payment", false},
	{"ThriveCart", model.VersionV1, "Payment", false},
	{"SamCart", model.VersionV2, "Payment", false},
	{"Shopify", model.VersionV2, "Ecommerce", true},
	{"WooCommerce", model.VersionV1, "Ecommerce", true},
	{"BigCommerce", model.VersionV1, "Ecommerce", false},
	{"Facebook Ads", model.VersionV2, "Ads", true},
	{"Google Ads", model.VersionV2, "Ads", true},
	{"TikTok Ads", model.VersionV1, "Ads", true},
	{"YouTube Ads", model.VersionV1, "Ads", false},
	{"LinkedIn Ads", model.VersionV1, "Ads", false},
	{"Bing Ads", model.VersionV1, "Ads", false},
	{"Snapchat Ads", model.VersionV1, "Ads", false},
	{"HubSpot", model.VersionV1, "CRM", true},
	{"Salesforce", model.VersionV1, "CRM", false},
	{"GoHighLevel", model.VersionV2, "CRM", true},
	{"ActiveCampaign", model.VersionV1, "CRM", false},
	{"Keap", model.VersionV1, "CRM", false},
	{"Close", model.VersionV1, "CRM", false},
	{"ClickFunnels", model.VersionV2, "Funnels", true},
	{"Kajabi", model.VersionV1, "Funnels", false},
	{"Kartra", model.VersionV1, "Funnels", false},
	{"Calendly", model.VersionV1, "Calls", false},
	{"CallRail", model.VersionV1, "Calls", false},
}

// Defaults returns the built-in catalog with ids 1..N, all unchecked and
// marked as default so they can never be deleted.
func Defaults() []model.Install {
	out := make([]model.Install, 0, len(builtIn))
	for i, e := range builtIn {
		out = append(out, model.Install{
			ID:        i + 1,
			Name:      e.name,
			Version:   e.version,
			Category:  e.category,
			Status:    model.StatusUnchecked,
			Critical:  e.critical,
			IsDefault: true,
		})
	}
	return out
}

// SeedIfEmpty inserts Defaults when the store holds no records. It reports
// whether seeding happened.
func SeedIfEmpty(ctx context.Context, store Store) (bool, error) {
	max, err := store.MaxID(ctx)
	if err != nil {
		return false, fmt.Errorf("check catalog: %w", err)
	}
	if max > 0 {
		return false, nil
	}
	for _, rec := range Defaults() {
		if _, err := store.Insert(ctx, rec); err != nil {
			return false, fmt.Errorf("seed %q: %w", rec.Name, err)
		}
	}
	return true, nil
}
