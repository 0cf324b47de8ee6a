package hogwarts

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/tool"
)

const (
	DefaultBaseURL = "https://hp-api.onrender.com/api"
	// maxMatches caps the records returned to the model per lookup.
	maxMatches = 5
)

type Wand struct {
	Wood   string   `json:"wood,omitempty"`
	Core   string   `json:"core,omitempty"`
	Length *float64 `json:"length,omitempty"`
}

type Character struct {
	Name           string   `json:"name"`
	AlternateNames []string `json:"alternate_names,omitempty"`
	Species        string   `json:"species,omitempty"`
	House          string   `json:"house,omitempty"`
	DateOfBirth    string   `json:"dateOfBirth,omitempty"`
	Ancestry       string   `json:"ancestry,omitempty"`
	Patronus       string   `json:"patronus,omitempty"`
	Wand           Wand     `json:"wand"`
	Actor          string   `json:"actor,omitempty"`
	Alive          bool     `json:"alive"`
}

type Spell struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CharacterInput struct {
	Name string `json:"name" jsonschema:"description=Full or partial name of the character,required"`
}

type SpellInput struct {
	Spell string `json:"spell" jsonschema:"description=Full or partial name of the spell,required"`
}

type CharacterOutput struct {
	Query   string      `json:"query"`
	Matches []Character `json:"matches"`
}

type SpellOutput struct {
	Query   string  `json:"query"`
	Matches []Spell `json:"matches"`
}

// API is a small HP-API client; the tool constructors share it.
type API struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*API)

func WithBaseURL(baseURL string) Option {
	return func(api *API) {
		api.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(api *API) {
		api.httpClient = client
	}
}

func NewAPI(opts ...Option) *API {
	api := &API{baseURL: DefaultBaseURL, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(api)
	}
	return api
}

func NewStudentsTool(opts ...Option) *tool.Tool[CharacterInput, CharacterOutput] {
	return tool.NewTool[CharacterInput, CharacterOutput](
		"hogwarts_student_info",
		NewAPI(opts...).Students,
		tool.WithDescription("Fetches information about a Hogwarts student from the Harry Potter franchise."),
	)
}

func NewStaffTool(opts ...Option) *tool.Tool[CharacterInput, CharacterOutput] {
	return tool.NewTool[CharacterInput, CharacterOutput](
		"hogwarts_staff_info",
		NewAPI(opts...).Staff,
		tool.WithDescription("Fetches information about a Hogwarts staff member from the Harry Potter franchise."),
	)
}

func NewSpellsTool(opts ...Option) *tool.Tool[SpellInput, SpellOutput] {
	return tool.NewTool[SpellInput, SpellOutput](
		"hogwarts_spell_info",
		NewAPI(opts...).Spells,
		tool.WithDescription("Fetches information about a spell from the Harry Potter franchise."),
	)
}

// Tools returns the three lookups, sharing one configuration.
func Tools(opts ...Option) []tool.GenericTool {
	return []tool.GenericTool{NewStudentsTool(opts...), NewStaffTool(opts...), NewSpellsTool(opts...)}
}

func (api *API) Students(ctx context.Context, input CharacterInput) (CharacterOutput, error) {
	return api.characters(ctx, "/characters/students", input)
}

func (api *API) Staff(ctx context.Context, input CharacterInput) (CharacterOutput, error) {
	return api.characters(ctx, "/characters/staff", input)
}

func (api *API) Spells(ctx context.Context, input SpellInput) (SpellOutput, error) {
	spells, err := utils.DoGetJSON[[]Spell](ctx, api.httpClient, api.baseURL+"/spells", nil)
	if err != nil {
		return SpellOutput{}, fmt.Errorf("hogwarts: spells: %w", err)
	}

	output := SpellOutput{Query: input.Spell, Matches: []Spell{}}
	for _, spell := range *spells {
		if len(output.Matches) == maxMatches {
			break
		}
		if matches(input.Spell, spell.Name) {
			output.Matches = append(output.Matches, spell)
		}
	}
	return output, nil
}

func (api *API) characters(ctx context.Context, path string, input CharacterInput) (CharacterOutput, error) {
	characters, err := utils.DoGetJSON[[]Character](ctx, api.httpClient, api.baseURL+path, nil)
	if err != nil {
		return CharacterOutput{}, fmt.Errorf("hogwarts: %s: %w", strings.TrimPrefix(path, "/characters/"), err)
	}

	output := CharacterOutput{Query: input.Name, Matches: []Character{}}
	for _, character := range *characters {
		if len(output.Matches) == maxMatches {
			break
		}
		if matches(input.Name, append([]string{character.Name}, character.AlternateNames...)...) {
			output.Matches = append(output.Matches, character)
		}
	}
	return output, nil
}

// matches reports a case-insensitive substring hit on any candidate. An empty
// query matches everything.
func matches(query string, candidates ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	for _, candidate := range candidates {
		if strings.Contains(strings.ToLower(candidate), query) {
			return true
		}
	}
	return false
}
