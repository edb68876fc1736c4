package flow

import (
	"math"

	"smartfinder_backend/internal/finder/catalog"
	"smartfinder_backend/internal/finder/persist"
	"smartfinder_backend/internal/finder/scoring"
	"smartfinder_backend/internal/finder/session"
)

// Block types.
const (
	BlockMessage     = "message"
	BlockTyping      = "typing"
	BlockPause       = "pause"
	BlockOptions     = "options"
	BlockAppCard     = "app_card"
	BlockForm        = "form"
	BlockEmailPrompt = "email_prompt"
	BlockClose       = "close"
)

// Form kinds.
const (
	FormContextual = "contextual"
	FormEnrichment = "enrichment"
)

// Enrichment form field ids.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldPhone     = "phone"
)

const featuredBadge = "⭐ Featured"

// Block is one render instruction, played back in order by the page.
type Block struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Error   bool             `json:"error,omitempty"`
	DelayMS int              `json:"delay_ms,omitempty"`
	Options []catalog.Option `json:"options,omitempty"`
	Card    *AppCard         `json:"card,omitempty"`
	Form    *Form            `json:"form,omitempty"`
	Value   string           `json:"value,omitempty"`
}

// Price is the pricing line of a card.
type Price struct {
	Monthly         float64 `json:"monthly"`
	Lifetime        float64 `json:"lifetime,omitempty"`
	BreakEvenMonths int     `json:"break_even_months,omitempty"`
}

// AppCard is a recommended app as shown to the visitor.
type AppCard struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Score       int             `json:"score"`
	Featured    bool            `json:"featured"`
	Badges      []string        `json:"badges,omitempty"`
	SocialProof string          `json:"social_proof,omitempty"`
	Modules     catalog.Modules `json:"modules,omitempty"`
	SetupTime   string          `json:"setup_time,omitempty"`
	Price       Price           `json:"price"`
}

// Field is one input of a form block.
type Field struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Value       string   `json:"value,omitempty"`
}

// Form is a contextual or enrichment form.
type Form struct {
	Kind      string  `json:"kind"`
	Intro     string  `json:"intro,omitempty"`
	Fields    []Field `json:"fields"`
	Skippable bool    `json:"skippable"`
}

// Reply is what an action produces: the step the conversation is now at and
// the blocks to render.
type Reply struct {
	Step   session.Step `json:"step"`
	Blocks []Block      `json:"blocks"`
}

func message(text string) Block {
	return Block{Type: BlockMessage, Text: text}
}

func errorMessage(text string) Block {
	return Block{Type: BlockMessage, Text: text, Error: true}
}

func pause(ms int) Block {
	return Block{Type: BlockPause, DelayMS: ms}
}

// important renders text with the typewriter effect unless disabled.
func important(doc *catalog.Document, text string) Block {
	if doc.Settings.TypingEnabled() {
		return Block{Type: BlockTyping, Text: text}
	}
	return message(text)
}

func priceOf(app catalog.App) Price {
	p := Price{Monthly: app.Pricing.Monthly}
	if app.HasLifetime && app.Pricing.Lifetime > 0 {
		p.Lifetime = app.Pricing.Lifetime
		if app.Pricing.Monthly > 0 {
			p.BreakEvenMonths = int(math.Ceil(app.Pricing.Lifetime / app.Pricing.Monthly))
		}
	}
	return p
}

func cardFor(rec scoring.Recommendation) Block {
	app := rec.App
	badges := make([]string, 0, len(app.Badges)+1)
	if app.Featured {
		badges = append(badges, featuredBadge)
	}
	badges = append(badges, app.Badges...)

	return Block{Type: BlockAppCard, Card: &AppCard{
		ID:          app.ID,
		Name:        app.Name,
		Icon:        app.Icon,
		Description: app.Description,
		Category:    app.Category,
		Score:       rec.Score,
		Featured:    app.Featured,
		Badges:      badges,
		SocialProof: app.SocialProof,
		Modules:     app.Modules,
		SetupTime:   app.SetupTime,
		Price:       priceOf(app),
	}}
}

func contextualForm(app catalog.App, saved map[string]string) Block {
	fields := make([]Field, 0, len(app.FormQuestions))
	for _, q := range app.FormQuestions {
		fields = append(fields, Field{
			ID:          q.ID,
			Type:        q.Type,
			Label:       q.Label,
			Placeholder: q.Placeholder,
			Required:    q.Required,
			Options:     q.Options,
			Value:       saved[q.ID],
		})
	}
	return Block{Type: BlockForm, Form: &Form{Kind: FormContextual, Fields: fields, Skippable: true}}
}

func enrichmentForm(doc *catalog.Document, saved persist.Enrichment) Block {
	return Block{Type: BlockForm, Form: &Form{
		Kind:  FormEnrichment,
		Intro: doc.Message(catalog.MsgEnrichmentIntro),
		Fields: []Field{
			{ID: FieldFirstName, Type: catalog.FieldText, Label: "Prénom (optionnel)", Placeholder: "Jean", Value: saved.FirstName},
			{ID: FieldLastName, Type: catalog.FieldText, Label: "Nom de famille (optionnel)", Placeholder: "Dupont", Value: saved.LastName},
			{ID: FieldPhone, Type: "tel", Label: "Téléphone (optionnel)", Placeholder: "+33 6 12 34 56 78", Value: saved.Phone},
		},
		Skippable: true,
	}}
}

func formFieldIDs(app catalog.App) []string {
	ids := make([]string, 0, len(app.FormQuestions))
	for _, q := range app.FormQuestions {
		ids = append(ids, q.ID)
	}
	return ids
}
