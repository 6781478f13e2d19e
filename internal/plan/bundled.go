package plan

// BundledPlans returns the built-in demo catalogue served when the
// backend is unreachable. Prices are in KES.
func BundledPlans() []Plan {
	return []Plan{
		{
			ID:             "demo-1h",
			Name:           "Quick Browse",
			Description:    "One hour of browsing for quick tasks",
			DurationHours:  1,
			BasePrice:      10,
			BandwidthLimit: "3M/1M",
			MaxDevices:     1,
			IsActive:       true,
			Features:       []string{"1 hour access", "3 Mbps download"},
		},
		{
			ID:             "demo-day",
			Name:           "Daily",
			Description:    "A full day online",
			DurationHours:  24,
			BasePrice:      50,
			BandwidthLimit: "5M/2M",
			MaxDevices:     2,
			IsActive:       true,
			IsPopular:      true,
			Features:       []string{"24 hour access", "5 Mbps download", "Up to 2 devices"},
		},
		{
			ID:             "demo-week",
			Name:           "Weekly",
			Description:    "Seven days of uninterrupted access",
			DurationHours:  168,
			BasePrice:      250,
			BandwidthLimit: "8M/4M",
			MaxDevices:     3,
			IsActive:       true,
			Features:       []string{"7 day access", "8 Mbps download", "Up to 3 devices"},
		},
		{
			ID:             "demo-month",
			Name:           "Monthly",
			Description:    "A month of home-grade internet",
			DurationHours:  720,
			BasePrice:      800,
			BandwidthLimit: "10M/5M",
			MaxDevices:     5,
			IsActive:       true,
			Features:       []string{"30 day access", "10 Mbps download", "Up to 5 devices"},
		},
	}
}
