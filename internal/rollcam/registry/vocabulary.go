package registry

import "strings"

// Function is one entry of the top-level function menu. Payload is the
// command sent back when the button is chosen; it begins with a menu keyword.
type Function struct {
	Label   string `yaml:"label" json:"label"`
	Payload string `yaml:"payload" json:"payload"`
}

// Vocabulary holds the localized keywords the interpreter matches and the
// fixed reply texts. The zero value is not useful; start from
// DefaultVocabulary.
type Vocabulary struct {
	MenuKeywords []string   `yaml:"menu_keywords" json:"menu_keywords,omitempty"`
	Functions    []Function `yaml:"functions" json:"functions,omitempty"`

	CustomWord string `yaml:"custom_word" json:"custom_word,omitempty"`
	LatestWord string `yaml:"latest_word" json:"latest_word,omitempty"`
	FiveWord   string `yaml:"five_word" json:"five_word,omitempty"`
	Delimiter  string `yaml:"delimiter" json:"delimiter,omitempty"`

	// Words used to derive default per-machine templates.
	ImageWord  string `yaml:"image_word" json:"image_word,omitempty"`
	SearchWord string `yaml:"search_word" json:"search_word,omitempty"`
	TimeWord   string `yaml:"time_word" json:"time_word,omitempty"`

	MenuTitle      string `yaml:"menu_title" json:"menu_title,omitempty"`
	MenuText       string `yaml:"menu_text" json:"menu_text,omitempty"`
	MachineAltText string `yaml:"machine_alt_text" json:"machine_alt_text,omitempty"`

	StaleText     string `yaml:"stale_text" json:"stale_text,omitempty"`
	NoResultsText string `yaml:"no_results_text" json:"no_results_text,omitempty"`
	ErrorText     string `yaml:"error_text" json:"error_text,omitempty"`
	// WelcomeText is a fmt template taking the registered name.
	WelcomeText  string `yaml:"welcome_text" json:"welcome_text,omitempty"`
	GreetingText string `yaml:"greeting_text" json:"greeting_text,omitempty"`
}

// DefaultVocabulary returns the stock traditional-Chinese vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		MenuKeywords: []string{"!", "！"},
		Functions: []Function{
			{Label: "最新影像", Payload: "!最新影像"},
			{Label: "最新影像五張", Payload: "!最新影像五張"},
			{Label: "自訂時間區間", Payload: "!自訂時間影像"},
		},
		CustomWord:     "自訂",
		LatestWord:     "最新",
		FiveWord:       "五張",
		Delimiter:      ":",
		ImageWord:      "影像",
		SearchWord:     "搜尋",
		TimeWord:       "時間",
		MenuTitle:      "鋼筋影像",
		MenuText:       "功能選單",
		MachineAltText: "機器選擇",
		StaleText:      "一小時內無影像",
		NoResultsText:  "查無影像",
		ErrorText:      "Unable to process your request",
		WelcomeText:    "Welcome %s!",
		GreetingText:   "功能選單觀看即時影像",
	}
}

// merge fills every empty field of v from def.
func (v Vocabulary) merge(def Vocabulary) Vocabulary {
	if len(v.MenuKeywords) == 0 {
		v.MenuKeywords = def.MenuKeywords
	}
	if len(v.Functions) == 0 {
		v.Functions = def.Functions
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&v.CustomWord, def.CustomWord)
	fill(&v.LatestWord, def.LatestWord)
	fill(&v.FiveWord, def.FiveWord)
	fill(&v.Delimiter, def.Delimiter)
	fill(&v.ImageWord, def.ImageWord)
	fill(&v.SearchWord, def.SearchWord)
	fill(&v.TimeWord, def.TimeWord)
	fill(&v.MenuTitle, def.MenuTitle)
	fill(&v.MenuText, def.MenuText)
	fill(&v.MachineAltText, def.MachineAltText)
	fill(&v.StaleText, def.StaleText)
	fill(&v.NoResultsText, def.NoResultsText)
	fill(&v.ErrorText, def.ErrorText)
	fill(&v.WelcomeText, def.WelcomeText)
	fill(&v.GreetingText, def.GreetingText)
	return v
}

// IsMenuKeyword reports whether text is exactly one of the menu keywords.
func (v Vocabulary) IsMenuKeyword(text string) bool {
	for _, k := range v.MenuKeywords {
		if text == k {
			return true
		}
	}
	return false
}

// FunctionFor returns the function whose payload equals text.
func (v Vocabulary) FunctionFor(text string) (Function, bool) {
	for _, f := range v.Functions {
		if f.Payload == text {
			return f, true
		}
	}
	return Function{}, false
}

// StripMenuKeyword removes one leading menu keyword from s, if present.
func (v Vocabulary) StripMenuKeyword(s string) string {
	for _, k := range v.MenuKeywords {
		if strings.HasPrefix(s, k) {
			return strings.TrimPrefix(s, k)
		}
	}
	return s
}
