package models

// UsageTracking counts external API calls per user per calendar month
// (YYYY-MM). Counters are advisory.
type UsageTracking struct {
	UserID              string `gorm:"type:varchar(64);primaryKey" json:"userId"`
	Month               string `gorm:"type:varchar(7);primaryKey" json:"month"`
	GoogleDriveRequests int    `gorm:"default:0" json:"googleDriveRequests"`
	GeminiRequests      int    `gorm:"default:0" json:"geminiRequests"`
	ProjectsCreated     int    `gorm:"default:0" json:"projectsCreated"`
	StorageUsed         int64  `gorm:"default:0" json:"storageUsed"`
}

func (UsageTracking) TableName() string {
	return "usage_tracking"
}

type SubscriptionPlan struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Features    []string         `json:"features"`
	Tier        SubscriptionTier `json:"tier"`
	Popular     bool             `json:"popular"`
}

// SubscriptionPlans returns the static plan catalogue.
func SubscriptionPlans() []SubscriptionPlan {
	return []SubscriptionPlan{
		{
			ID:          "free",
			Name:        "Free",
			Description: "Perfect for personal projects and trying out the platform",
			Price:       0,
			Tier:        TierFree,
			Features: []string{
				"Unlimited projects in your Google Drive",
				"Basic kanban boards",
				"Team collaboration via email",
				"Basic Google Drive integration",
				"Community support",
			},
		},
		{
			ID:          "managed_api",
			Name:        "Managed API",
			Description: "Skip the technical setup - we handle Google API configuration",
			Price:       9,
			Tier:        TierManagedAPI,
			Popular:     true,
			Features: []string{
				"Everything in Free",
				"Pre-configured Google API access",
				"Higher API rate limits",
				"No technical setup required",
				"Priority email support",
				"Advanced Google Drive features",
			},
		},
		{
			ID:          "premium",
			Name:        "Premium",
			Description: "Advanced features for power users and teams",
			Price:       19,
			Tier:        TierPremium,
			Features: []string{
				"Everything in Managed API",
				"AI-powered project insights",
				"Custom automations and workflows",
				"Advanced reporting and analytics",
				"Custom integrations (Slack, Discord)",
				"Time tracking and productivity metrics",
				"Priority chat support",
			},
		},
	}
}

// FindPlan looks a plan up by id.
func FindPlan(id string) (SubscriptionPlan, bool) {
	for _, p := range SubscriptionPlans() {
		if p.ID == id {
			return p, true
		}
	}
	return SubscriptionPlan{}, false
}

// ProjectDocument is the per-project JSON file kept in Google Drive.
type ProjectDocument struct {
	Project       Project         `json:"project"`
	Tasks         []Task          `json:"tasks"`
	Members       []ProjectMember `json:"members"`
	Comments      []Comment       `json:"comments"`
	Activities    []Activity      `json:"activities"`
	AiSuggestions []AiSuggestion  `json:"aiSuggestions"`
}
