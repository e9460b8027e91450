package flow

// ProviderID identifies a model provider.
type ProviderID string

// Known providers.
const (
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
	ProviderGoogle    ProviderID = "google"
)

// Provider describes a model provider. Availability is never stored on it;
// it is derived from the ProviderRegistry at resolution time.
type Provider struct {
	ID          ProviderID `json:"id" yaml:"id"`
	DisplayName string     `json:"displayName" yaml:"displayName"`
}

// TaskCategory labels a class of work used to select a provider pair.
type TaskCategory string

// Registered task categories.
const (
	CategoryAgentExecution             TaskCategory = "agent-execution"
	CategoryLowCodeGeneration          TaskCategory = "low-code-generation"
	CategoryWorkflowOrchestration      TaskCategory = "workflow-orchestration"
	CategorySpreadsheetMacroGeneration TaskCategory = "spreadsheet-macro-generation"
	CategoryTestGeneration             TaskCategory = "test-generation"
	CategoryDocumentationGeneration    TaskCategory = "documentation-generation"
	CategoryCodeAnalysis               TaskCategory = "code-analysis"
)

// TaskMapping binds a category to its preferred and fallback provider.
// Rationale is documentation only.
type TaskMapping struct {
	Category  TaskCategory `json:"category" yaml:"category"`
	Primary   ProviderID   `json:"primary" yaml:"primary"`
	Secondary ProviderID   `json:"secondary,omitempty" yaml:"secondary,omitempty"`
	Rationale string       `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// HasSecondary reports whether the mapping names a fallback provider.
func (m TaskMapping) HasSecondary() bool {
	return m.Secondary != ""
}

var providers = []Provider{
	{ID: ProviderAnthropic, DisplayName: "Anthropic Claude"},
	{ID: ProviderOpenAI, DisplayName: "OpenAI GPT"},
	{ID: ProviderGoogle, DisplayName: "Google Gemini"},
}

var catalog = []TaskMapping{
	{
		Category:  CategoryAgentExecution,
		Primary:   ProviderAnthropic,
		Secondary: ProviderOpenAI,
		Rationale: "long multi-step tool use and instruction following",
	},
	{
		Category:  CategoryLowCodeGeneration,
		Primary:   ProviderOpenAI,
		Secondary: ProviderAnthropic,
		Rationale: "fast component and form scaffolding",
	},
	{
		Category:  CategoryWorkflowOrchestration,
		Primary:   ProviderAnthropic,
		Secondary: ProviderGoogle,
		Rationale: "planning across dependent stages",
	},
	{
		Category:  CategorySpreadsheetMacroGeneration,
		Primary:   ProviderOpenAI,
		Secondary: ProviderGoogle,
		Rationale: "formula and macro synthesis",
	},
	{
		Category:  CategoryTestGeneration,
		Primary:   ProviderAnthropic,
		Secondary: ProviderOpenAI,
		Rationale: "edge-case coverage and test structure",
	},
	{
		Category:  CategoryDocumentationGeneration,
		Primary:   ProviderGoogle,
		Secondary: ProviderAnthropic,
		Rationale: "long-context summarisation",
	},
	{
		Category:  CategoryCodeAnalysis,
		Primary:   ProviderAnthropic,
		Secondary: ProviderGoogle,
		Rationale: "large codebase reasoning",
	},
}

// defaultMapping is used for categories missing from the catalog. It names a
// single provider and no fallback.
var defaultMapping = TaskMapping{
	Primary:   ProviderOpenAI,
	Rationale: "default for unmapped categories",
}

// Providers returns the known providers.
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// LookupProvider returns the provider with the given id.
func LookupProvider(id ProviderID) (Provider, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// Catalog returns a copy of the task category mappings.
func Catalog() []TaskMapping {
	out := make([]TaskMapping, len(catalog))
	copy(out, catalog)
	return out
}

// MappingFor returns the mapping for category, falling back to the default
// mapping when the category is not registered. The second result reports
// whether the category was registered.
func MappingFor(category TaskCategory) (TaskMapping, bool) {
	for _, m := range catalog {
		if m.Category == category {
			return m, true
		}
	}
	m := defaultMapping
	m.Category = category
	return m, false
}
