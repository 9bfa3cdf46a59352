package provider

// ModelOption describes one user-selectable model.
type ModelOption struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// DefaultModel is the friendly name selected when the user has no preference.
const DefaultModel = "gpt-oss-20b"

// Models lists every selectable model, including the mock sentinel.
var Models = []ModelOption{
	{Value: "gpt-oss-20b", Label: "GPT-OSS-20B", Description: "Free - Default", IsDefault: true},
	{Value: "gemini-2.0-flash-exp", Label: "Gemini 2.0 Flash", Description: "Free"},
	{Value: MockModel, Label: "Mock API", Description: "Testing"},
}

// contextWindows holds the advertised context window (tokens) per friendly
// model name. Used only for the advisory prompt-budget check.
var contextWindows = map[string]int{
	"gemini-2.0-flash-exp": 1048576,
	"gpt-oss-20b":          131072,
}

const defaultContextWindow = 131072

// ContextWindow returns the context window for a friendly model name, with a
// conservative default for unknown names.
func ContextWindow(model string) int {
	if w, ok := contextWindows[model]; ok {
		return w
	}
	return defaultContextWindow
}

// DisplayName returns the catalog label for a model, or the raw name when it
// is not in the catalog.
func DisplayName(model string) string {
	for _, m := range Models {
		if m.Value == model {
			return m.Label
		}
	}
	return model
}
