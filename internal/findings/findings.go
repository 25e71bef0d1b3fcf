// Package findings holds the fixed narrative and model figures shown on the
// dashboard. The model figures are published constants; nothing here is
// computed from the generated tables.
package findings

// Metric is a headline model figure with a short caption.
type Metric struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Caption string  `json:"caption"`
}

// Feature is one entry of the feature-importance ranking.
type Feature struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Recommendation is a numbered implementation recommendation.
type Recommendation struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// KeyFindingsContent is the text of the "Key Findings" tab.
type KeyFindingsContent struct {
	Title    string    `json:"title"`
	Context  string    `json:"context"`
	Summary  string    `json:"summary"`
	Insights []Insight `json:"insights"`
}

// Insight is a bolded heading followed by a sentence.
type Insight struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

// ModelContent is the text and figures of the "Model Predictions" tab.
type ModelContent struct {
	Title           string           `json:"title"`
	ModelName       string           `json:"model_name"`
	Metrics         []Metric         `json:"metrics"`
	Features        []Feature        `json:"features"`
	Recommendations []Recommendation `json:"recommendations"`
	Benefits        []string         `json:"benefits"`
}

// KeyFindings returns the narrative for the findings tab.
func KeyFindings() KeyFindingsContent {
	return KeyFindingsContent{
		Title:   "Healthcare Demand Key Findings",
		Context: "South African NHI Context",
		Summary: "This dashboard supports South Africa's National Health Insurance (NHI) by predicting " +
			"healthcare demand patterns to improve resource allocation.",
		Insights: []Insight{
			{Heading: "Peak Demand", Text: "March shows highest healthcare demand"},
			{Heading: "Appointment Completion", Text: "Only 30% of appointments are completed"},
			{Heading: "Top Specialization", Text: "Pediatrics has the highest demand"},
			{Heading: "NHI Impact", Text: "These patterns help plan resource allocation under NHI"},
		},
	}
}

// ModelReport returns the model tab content.
func ModelReport() ModelContent {
	return ModelContent{
		Title:     "Healthcare Demand Prediction Model",
		ModelName: "Optimized Random Forest Model Performance",
		Metrics: []Metric{
			{Name: "R² Score", Value: 0.82, Display: "0.82", Caption: "82% accuracy"},
			{Name: "MAE", Value: 1.28, Display: "1.28", Caption: "Mean Absolute Error"},
			{Name: "RMSE", Value: 1.69, Display: "1.69", Caption: "Root Mean Square Error"},
		},
		Features: TopFeatures(),
		Recommendations: []Recommendation{
			{Title: "Deploy Model", Detail: "Use for operational demand forecasting"},
			{Title: "Update Quarterly", Detail: "Retrain with new patient data"},
			{Title: "Add External Factors", Detail: "Include holidays and public events"},
			{Title: "Provincial Rollout", Detail: "Start with Gauteng and Western Cape"},
			{Title: "Address Inequities", Detail: "Focus on underserved rural areas"},
		},
		Benefits: []string{
			"Reduces patient wait times through better planning",
			"Improves resource allocation efficiency",
			"Supports equitable healthcare access",
			"Helps prepare for increased patient load under NHI",
		},
	}
}

// TopFeatures returns the five most important model features, most
// important first.
func TopFeatures() []Feature {
	return []Feature{
		{Name: "Rolling 7-day Avg", Importance: 0.234},
		{Name: "Lag 7 days", Importance: 0.187},
		{Name: "Rolling 14-day Avg", Importance: 0.156},
		{Name: "Lag 1 day", Importance: 0.134},
		{Name: "Month", Importance: 0.098},
	}
}
