package domain

// ChartSettings configure the chart rendered into a chart placeholder text box.
type ChartSettings struct {
	Title            string `yaml:"title" json:"title"`
	XLabel           string `yaml:"xlabel" json:"xlabel"`
	YLabel           string `yaml:"ylabel" json:"ylabel"`
	PlaceholderToken string `yaml:"placeholder_token" json:"placeholder_token"`
}

// DefaultChartSettings returns the chart settings used when a recipe omits them.
func DefaultChartSettings() ChartSettings {
	return ChartSettings{
		Title:            "Revenue",
		XLabel:           "Year",
		YLabel:           "Value",
		PlaceholderToken: TokenChartPlaceholder,
	}
}

// Recipe is a local, file-driven deck generation request.
type Recipe struct {
	// CompanyName replaces {{COMPANY_NAME}}.
	CompanyName string `yaml:"company_name" json:"company_name"`

	// Tagline replaces {{TAGLINE}}.
	Tagline string `yaml:"tagline" json:"tagline"`

	// AboutBullets replace {{ABOUT_BULLETS}}, one paragraph each.
	AboutBullets []string `yaml:"about_bullets" json:"about_bullets"`

	// LogoPath is an image placed on the first slide, optional.
	LogoPath string `yaml:"logo_path" json:"logo_path"`

	// Financials are (year, value) pairs charted into the placeholder.
	Financials [][2]float64 `yaml:"financials" json:"financials"`

	// TemplatePath is the template presentation.
	TemplatePath string `yaml:"template_path" json:"template_path"`

	// OutputPath is where the deck is written.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// Chart configures the rendered chart.
	Chart ChartSettings `yaml:"chart" json:"chart"`
}
