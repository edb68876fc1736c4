// Package catalog holds the Smart Finder configuration document: the
// qualifying questions, the app catalog, scoring settings, message templates
// and the lead API endpoint. A Document is validated once when loaded and is
// treated as immutable afterwards.
package catalog

import "strings"

// SectorQuestionID is the answer key the scoring engine reads.
const SectorQuestionID = "sector"

// Option is one selectable answer of a question.
type Option struct {
	Value  string `json:"value" yaml:"value" validate:"required"`
	Label  string `json:"label" yaml:"label" validate:"required"`
	Weight int    `json:"weight" yaml:"weight"`
	Icon   string `json:"icon" yaml:"icon"`
}

// Question is a qualifying question with its options.
type Question struct {
	ID      string   `json:"id" yaml:"id" validate:"required"`
	Text    string   `json:"text" yaml:"text" validate:"required"`
	Options []Option `json:"options" yaml:"options" validate:"required,min=1,dive"`
}

// Option returns the option with the given value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Form question types.
const (
	FieldText   = "text"
	FieldSelect = "select"
)

// FormQuestion is one app-specific field of the contextual form.
type FormQuestion struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Type        string   `json:"type" yaml:"type" validate:"required,oneof=text select"`
	Label       string   `json:"label" yaml:"label" validate:"required"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder"`
	Required    bool     `json:"required,omitempty" yaml:"required"`
	Options     []string `json:"options,omitempty" yaml:"options" validate:"required_if=Type select"`
}

// Accepts reports whether value is allowed for a select question.
// Text questions accept anything.
func (f FormQuestion) Accepts(value string) bool {
	if f.Type != FieldSelect {
		return true
	}
	for _, o := range f.Options {
		if o == value {
			return true
		}
	}
	return false
}

// App is a catalog entry that can be recommended.
type App struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name" validate:"required"`
	Icon          string         `json:"icon,omitempty" yaml:"icon"`
	Description   string         `json:"description,omitempty" yaml:"description"`
	Category      string         `json:"category" yaml:"category" validate:"required"`
	MinScore      int            `json:"min_score" yaml:"min_score" validate:"min=0"`
	Featured      bool           `json:"featured,omitempty" yaml:"featured"`
	SocialProof   string         `json:"social_proof,omitempty" yaml:"social_proof"`
	HasLifetime   bool           `json:"has_lifetime,omitempty" yaml:"has_lifetime"`
	Pricing       Pricing        `json:"pricing" yaml:"pricing"`
	SetupTime     string         `json:"setup_time,omitempty" yaml:"setup_time"`
	Modules       Modules        `json:"modules,omitempty" yaml:"modules"`
	Badges        []string       `json:"badges,omitempty" yaml:"badges"`
	FormQuestions []FormQuestion `json:"form_questions,omitempty" yaml:"form_questions" validate:"dive"`
}

// HasContextualForm reports whether selecting the app opens the contextual form.
func (a App) HasContextualForm() bool {
	return len(a.FormQuestions) > 0
}

// Settings tunes pacing and the size of the recommendation list.
// Delays are in milliseconds.
type Settings struct {
	TypingDelay        int    `json:"typing_delay" yaml:"typing_delay" validate:"min=0"`
	ButtonDelay        int    `json:"button_delay" yaml:"button_delay" validate:"min=0"`
	TypingEffect       *bool  `json:"typing_effect,omitempty" yaml:"typing_effect"`
	IntroMessage       string `json:"intro_message" yaml:"intro_message"`
	MaxRecommendations int    `json:"max_recommendations" yaml:"max_recommendations" validate:"min=1"`
	MinRecommendations int    `json:"min_recommendations" yaml:"min_recommendations" validate:"min=0,ltefield=MaxRecommendations"`
}

// TypingEnabled reports whether important messages use the typewriter effect.
func (s Settings) TypingEnabled() bool {
	return s.TypingEffect == nil || *s.TypingEffect
}

// Fallback is the fixed list returned when scoring yields too few apps.
type Fallback struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Apps    []string `json:"apps" yaml:"apps" validate:"required_if=Enabled true"`
}

// API locates the lead endpoint.
type API struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
}

// Document is the whole Smart Finder configuration.
type Document struct {
	Questions []Question        `json:"questions" yaml:"questions" validate:"required,min=1,dive"`
	Apps      AppCatalog        `json:"apps" yaml:"apps"`
	Settings  Settings          `json:"settings" yaml:"settings"`
	Messages  map[string]string `json:"messages" yaml:"messages"`
	Fallback  Fallback          `json:"fallback" yaml:"fallback"`
	API       API               `json:"api" yaml:"api"`
}

// Message names used by the conversation.
const (
	MsgResults           = "results"
	MsgScanning          = "scanning"
	MsgEmailSent         = "email_sent"
	MsgFormIntro         = "form_intro"
	MsgSuccess           = "success"
	MsgEnrichmentSuccess = "enrichment_success"
	MsgEnrichmentIntro   = "enrichment_intro"
	MsgNetworkError      = "network_error"
)

var defaultMessages = map[string]string{
	MsgResults:           "Voici les apps qui correspondent le mieux à ton activité :",
	MsgScanning:          "Super choix 🔍 Je scanne nos apps pour toi...",
	MsgEmailSent:         "C'est noté, ton accès est en préparation ✅",
	MsgFormIntro:         "Encore quelques questions pour préparer ton app :",
	MsgSuccess:           "Merci ! On revient vers toi très vite 🚀",
	MsgEnrichmentSuccess: "Parfait, je transmets tout ça à l'équipe 🙌",
	MsgEnrichmentIntro:   "Ces infos me permettent de te contacter directement",
	MsgNetworkError:      "❌ Erreur réseau. Réessaie dans un instant.",
}

// Message returns the named template, falling back to the built-in text.
func (d *Document) Message(name string) string {
	if msg := strings.TrimSpace(d.Messages[name]); msg != "" {
		return msg
	}
	return defaultMessages[name]
}

// PrimaryQuestion is the single qualifying question asked by the conversation.
func (d *Document) PrimaryQuestion() Question {
	return d.Questions[0]
}

// App looks an app up by id.
func (d *Document) App(id string) (App, bool) {
	return d.Apps.Get(id)
}
