// Copyright (c) 2026 Alexandre Moreau.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package laws

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/statecraft-sim/server/rank"
)

//go:embed catalog.yaml
var catalogYAML []byte

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Vote access types
const (
	AccessSovereignOnly = "sovereign_only"
	AccessCouncilOnly   = "council_only"
	AccessAllMembers    = "all_members"
)

// Passing conditions
const (
	PassSovereignOnly = "sovereign_only"
	PassMajority      = "majority_vote"
	PassSupermajority = "supermajority_vote"
	PassUnanimous     = "unanimous"
)

// Law type keys
const (
	MessageOfTheDay  = "MESSAGE_OF_THE_DAY"
	WorkTax          = "WORK_TAX"
	ImportTariff     = "IMPORT_TARIFF"
	IssueCurrency    = "ISSUE_CURRENCY"
	DeclareWar       = "DECLARE_WAR"
	CfcAlliance      = "CFC_ALLIANCE"
	AppointSecretary = "APPOINT_SECRETARY"
	RoyalSuccession  = "ROYAL_SUCCESSION"
)

// GovernanceRule describes who may propose and vote on a law under one
// governance type, and how its tally resolves.
type GovernanceRule struct {
	ProposeRanks []int
	VoteAccess   string
	Passing      string
	TimeToPass   time.Duration
	FastTrack    bool
}

// LawDefinition is one catalog entry.
type LawDefinition struct {
	Type        string
	Label       string
	Description string
	Rules       map[string]GovernanceRule

	schema *jsonschema.Schema
}

// Registry is the static law catalog. It has no mutable state; all lookups
// are safe for concurrent use.
type Registry struct {
	laws  map[string]LawDefinition
	order []string
}

// yaml wire shapes

type rawCatalog struct {
	Laws []rawLaw `yaml:"laws"`
}

type rawLaw struct {
	Type           string             `yaml:"type"`
	Label          string             `yaml:"label"`
	Description    string             `yaml:"description"`
	MetadataSchema string             `yaml:"metadata_schema"`
	Rules          map[string]rawRule `yaml:"rules"`
}

type rawRule struct {
	ProposeRanks []int  `yaml:"propose_ranks"`
	VoteAccess   string `yaml:"vote_access"`
	Passing      string `yaml:"passing"`
	TimeToPass   string `yaml:"time_to_pass"`
	FastTrack    bool   `yaml:"fast_track"`
}

// Load parses the embedded catalog and compiles each law's metadata schema.
func Load() (*Registry, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(catalogYAML, &raw); err != nil {
		return nil, fmt.Errorf("catalog.yaml: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	reg := &Registry{laws: make(map[string]LawDefinition, len(raw.Laws))}
	for _, rl := range raw.Laws {
		if rl.Type == "" {
			return nil, fmt.Errorf("catalog.yaml: law with empty type")
		}
		if _, dup := reg.laws[rl.Type]; dup {
			return nil, fmt.Errorf("catalog.yaml: duplicate law type %s", rl.Type)
		}

		data, err := schemaFS.ReadFile("schemas/" + rl.MetadataSchema)
		if err != nil {
			return nil, fmt.Errorf("law %s: metadata schema: %w", rl.Type, err)
		}
		// Schemas are shared between laws; register each file once.
		if err := compiler.AddResource(rl.MetadataSchema, bytes.NewReader(data)); err != nil && !isDuplicateResource(err) {
			return nil, fmt.Errorf("law %s: metadata schema: %w", rl.Type, err)
		}
		schema, err := compiler.Compile(rl.MetadataSchema)
		if err != nil {
			return nil, fmt.Errorf("law %s: compile schema: %w", rl.Type, err)
		}

		def := LawDefinition{
			Type:        rl.Type,
			Label:       rl.Label,
			Description: rl.Description,
			Rules:       make(map[string]GovernanceRule, len(rl.Rules)),
			schema:      schema,
		}
		for gov, rr := range rl.Rules {
			rule, err := rr.toRule()
			if err != nil {
				return nil, fmt.Errorf("law %s, governance %s: %w", rl.Type, gov, err)
			}
			def.Rules[gov] = rule
		}

		reg.laws[rl.Type] = def
		reg.order = append(reg.order, rl.Type)
	}

	return reg, nil
}

func (rr rawRule) toRule() (GovernanceRule, error) {
	if len(rr.ProposeRanks) == 0 {
		return GovernanceRule{}, fmt.Errorf("propose_ranks is required")
	}
	switch rr.VoteAccess {
	case AccessSovereignOnly, AccessCouncilOnly, AccessAllMembers:
	default:
		return GovernanceRule{}, fmt.Errorf("unknown vote_access %q", rr.VoteAccess)
	}
	switch rr.Passing {
	case PassSovereignOnly, PassMajority, PassSupermajority, PassUnanimous:
	default:
		return GovernanceRule{}, fmt.Errorf("unknown passing condition %q", rr.Passing)
	}
	window, err := time.ParseDuration(rr.TimeToPass)
	if err != nil {
		return GovernanceRule{}, fmt.Errorf("time_to_pass: %w", err)
	}
	if rr.Passing == PassSovereignOnly && window != 0 {
		return GovernanceRule{}, fmt.Errorf("sovereign_only laws must have time_to_pass 0h")
	}
	if rr.Passing != PassSovereignOnly && window <= 0 {
		return GovernanceRule{}, fmt.Errorf("voted laws must have a positive time_to_pass")
	}
	return GovernanceRule{
		ProposeRanks: rr.ProposeRanks,
		VoteAccess:   rr.VoteAccess,
		Passing:      rr.Passing,
		TimeToPass:   window,
		FastTrack:    rr.FastTrack,
	}, nil
}

func isDuplicateResource(err error) bool {
	return err != nil && bytes.Contains([]byte(err.Error()), []byte("already exists"))
}

// Definition returns the catalog entry for a law type.
func (r *Registry) Definition(lawType string) (LawDefinition, bool) {
	def, ok := r.laws[lawType]
	return def, ok
}

// RulesFor returns the governance rule for a law under a governance type.
// The second return is false when the law is unavailable there.
func (r *Registry) RulesFor(lawType, governance string) (GovernanceRule, bool) {
	def, ok := r.laws[lawType]
	if !ok {
		return GovernanceRule{}, false
	}
	rule, ok := def.Rules[governance]
	return rule, ok
}

// CanPropose reports whether a member of the given rank may initiate the
// law under the governance type. This is the sole gate checked before
// proposal creation.
func (r *Registry) CanPropose(lawType, governance string, memberRank int) bool {
	rule, ok := r.RulesFor(lawType, governance)
	if !ok {
		return false
	}
	for _, allowed := range rule.ProposeRanks {
		if memberRank == allowed {
			return true
		}
	}
	return false
}

// CanVote reports whether a member of the given rank may vote on the law
// under the governance type. This is the sole gate checked before vote
// acceptance.
func (r *Registry) CanVote(lawType, governance string, memberRank int) bool {
	rule, ok := r.RulesFor(lawType, governance)
	if !ok {
		return false
	}
	switch rule.VoteAccess {
	case AccessSovereignOnly:
		return rank.IsSovereign(memberRank)
	case AccessCouncilOnly:
		return rank.IsCouncil(memberRank)
	case AccessAllMembers:
		return true
	default:
		return false
	}
}

// ValidateMetadata checks a proposal's metadata payload against the law's
// JSON schema. Semantic checks (target resolvability) are the caller's job.
func (r *Registry) ValidateMetadata(lawType string, raw json.RawMessage) error {
	def, ok := r.laws[lawType]
	if !ok {
		return fmt.Errorf("unknown law type %s", lawType)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("metadata is not valid JSON: %w", err)
	}
	if err := def.schema.Validate(v); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

// Available lists catalog entries that have a rule for the governance
// type, in catalog order. An empty governance type lists everything.
func (r *Registry) Available(governance string) []LawDefinition {
	out := make([]LawDefinition, 0, len(r.order))
	for _, key := range r.order {
		def := r.laws[key]
		if governance == "" {
			out = append(out, def)
			continue
		}
		if _, ok := def.Rules[governance]; ok {
			out = append(out, def)
		}
	}
	return out
}
