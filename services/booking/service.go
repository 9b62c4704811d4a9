package booking

import "sort"

// Category is an entry of the service category table.
type Category struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	BasePrice   float64  `json:"basePrice"`
	Skills      []string `json:"skills"`
	Description string   `json:"description"`
}

// categoryTable is the price table. Base prices are per hour.
var categoryTable = map[string]Category{
	"driver": {
		Name:        "Transportation",
		Icon:        "🚗",
		BasePrice:   250,
		Skills:      []string{"City Driving", "Highway Driving", "Luxury Cars", "Commercial Vehicles", "Emergency Transport"},
		Description: "Safe and reliable transportation services",
	},
	"cook": {
		Name:        "Cooking & Catering",
		Icon:        "👨‍🍳",
		BasePrice:   400,
		Skills:      []string{"Indian Cuisine", "International Cuisine", "Vegan Cooking", "Party Catering", "Dietary Specialties"},
		Description: "Professional cooking and catering services",
	},
	"plumber": {
		Name:        "Plumbing Services",
		Icon:        "🔧",
		BasePrice:   300,
		Skills:      []string{"Pipe Repair", "Drain Cleaning", "Fixture Installation", "Water Heater", "Emergency Repair"},
		Description: "Expert plumbing and water system services",
	},
	"electrician": {
		Name:        "Electrical Services",
		Icon:        "⚡",
		BasePrice:   350,
		Skills:      []string{"Wiring", "Fixture Installation", "Safety Inspection", "Emergency Repair", "Smart Home Setup"},
		Description: "Certified electrical installation and repair",
	},
	"cleaner": {
		Name:        "Specialized Cleaning",
		Icon:        "🧽",
		BasePrice:   250,
		Skills:      []string{"Carpet Cleaning", "Window Cleaning", "Deep Cleaning", "Post-Construction", "Commercial Cleaning"},
		Description: "Specialized cleaning and maintenance services",
	},
	"maid": {
		Name:        "Housekeeping & Cleaning",
		Icon:        "🧹",
		BasePrice:   200,
		Skills:      []string{"Deep Cleaning", "Laundry", "Cooking", "Pet Care", "Elder Care"},
		Description: "Professional housekeeping and cleaning services",
	},
	"mechanic": {
		Name:        "Automotive Services",
		Icon:        "🔧",
		BasePrice:   400,
		Skills:      []string{"Engine Repair", "Brake Service", "Oil Change", "Diagnostics", "Emergency Repair"},
		Description: "Professional automotive repair and maintenance",
	},
	"other": {
		Name:        "Other Services",
		Icon:        "🛠️",
		BasePrice:   300,
		Skills:      []string{"Custom Services", "Consultation", "Specialized Work", "Emergency Services"},
		Description: "Custom and specialized services",
	},
}

// LookupCategory returns the category for key.
func LookupCategory(key string) (Category, bool) {
	c, ok := categoryTable[key]
	if !ok {
		return Category{}, false
	}
	c.Key = key
	return c, true
}

// Categories lists all categories ordered by key.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable))
	for key := range categoryTable {
		c, _ := LookupCategory(key)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TimeSlot is a bookable part of the day.
type TimeSlot struct {
	Label     string
	StartHour int
}

var TimeSlots = []TimeSlot{
	{Label: "Morning (6 AM - 12 PM)", StartHour: 6},
	{Label: "Afternoon (12 PM - 6 PM)", StartHour: 12},
	{Label: "Evening (6 PM - 10 PM)", StartHour: 18},
}

// LookupTimeSlot finds a slot by label.
func LookupTimeSlot(label string) (TimeSlot, bool) {
	for _, s := range TimeSlots {
		if s.Label == label {
			return s, true
		}
	}
	return TimeSlot{}, false
}
