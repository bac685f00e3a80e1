package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

// Function names understood by the dispatcher.
const (
	FunctionCollectPharmacyInfo = "collect_pharmacy_info"
	FunctionScheduleCallback    = "schedule_callback"
	FunctionSendFollowupEmail   = "send_followup_email"
	FunctionHighlightRxBenefits = "highlight_rx_benefits"
)

// ParamSchema describes one scalar tool parameter.
type ParamSchema struct {
	Name        string
	Type        string // string, number, boolean
	Description string
	Enum        []string
}

// ToolDefinition is a provider-neutral function declaration.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []ParamSchema
	Required    []string
}

// JSONSchema renders the parameters as a JSON-schema object.
func (t ToolDefinition) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.Params))
	for _, p := range t.Params {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
	}
	required := t.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var toolDefinitions = []ToolDefinition{
	{
		Name:        FunctionCollectPharmacyInfo,
		Description: "Collect information from new pharmacy lead during the conversation",
		Params: []ParamSchema{
			{Name: "pharmacy_name", Type: "string", Description: "The name of the pharmacy"},
			{Name: "contact_person", Type: "string", Description: "Name of the person we are speaking with"},
			{Name: "email", Type: "string", Description: "Email address for follow-up"},
			{Name: "estimated_rx_volume", Type: "number", Description: "Estimated monthly prescription volume"},
			{Name: "address", Type: "string", Description: "Pharmacy physical address"},
			{Name: "city", Type: "string", Description: "City where pharmacy is located"},
			{Name: "state", Type: "string", Description: "State where pharmacy is located"},
		},
	},
	{
		Name:        FunctionScheduleCallback,
		Description: "Schedule a callback for the pharmacy at their preferred time",
		Params: []ParamSchema{
			{Name: "preferred_time", Type: "string", Description: `When they would like to be called back (e.g., "tomorrow afternoon", "Friday at 2pm")`},
			{Name: "notes", Type: "string", Description: "Additional notes about the callback request"},
		},
		Required: []string{"preferred_time"},
	},
	{
		Name:        FunctionSendFollowupEmail,
		Description: "Send a follow-up email with information about Pharmesol services",
		Params: []ParamSchema{
			{Name: "email", Type: "string", Description: "Email address to send information to"},
			{Name: "include_pricing", Type: "boolean", Description: "Whether to include pricing information in the email"},
		},
		Required: []string{"email"},
	},
	{
		Name:        FunctionHighlightRxBenefits,
		Description: "Explain Pharmesol benefits based on the pharmacy's Rx volume tier",
		Params: []ParamSchema{
			{
				Name:        "volume_tier",
				Type:        "string",
				Description: "The pharmacy's prescription volume tier",
				Enum:        []string{string(pharmacy.TierHigh), string(pharmacy.TierMedium), string(pharmacy.TierLow), string(pharmacy.TierUnknown)},
			},
		},
		Required: []string{"volume_tier"},
	},
}

// Tools returns the function declarations offered to the model.
func Tools() []ToolDefinition {
	out := make([]ToolDefinition, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}

// FunctionCall is one parsed, validated tool invocation. The set of
// implementations is closed.
type FunctionCall interface {
	FunctionName() string
}

type CollectPharmacyInfoArgs struct {
	PharmacyName      string         `json:"pharmacy_name"`
	ContactPerson     string         `json:"contact_person"`
	Email             string         `json:"email"`
	EstimatedRxVolume flexibleNumber `json:"estimated_rx_volume"`
	Address           string         `json:"address"`
	City              string         `json:"city"`
	State             string         `json:"state"`
}

func (CollectPharmacyInfoArgs) FunctionName() string { return FunctionCollectPharmacyInfo }

// Update converts the arguments into a lead merge. Volumes are truncated to
// whole prescriptions; volumes below one are treated as absent.
func (a CollectPharmacyInfoArgs) Update() leads.Update {
	u := leads.Update{
		PharmacyName:  a.PharmacyName,
		ContactPerson: a.ContactPerson,
		Email:         a.Email,
		Address:       a.Address,
		City:          a.City,
		State:         a.State,
	}
	if a.EstimatedRxVolume.Set && a.EstimatedRxVolume.Value >= 1 {
		v := int(a.EstimatedRxVolume.Value)
		u.EstimatedRxVolume = &v
	}
	return u
}

type ScheduleCallbackArgs struct {
	PreferredTime string `json:"preferred_time" validate:"notblank"`
	Notes         string `json:"notes"`
}

func (ScheduleCallbackArgs) FunctionName() string { return FunctionScheduleCallback }

type SendFollowupEmailArgs struct {
	Email          string `json:"email" validate:"required,email"`
	IncludePricing bool   `json:"include_pricing"`
}

func (SendFollowupEmailArgs) FunctionName() string { return FunctionSendFollowupEmail }

type HighlightRxBenefitsArgs struct {
	VolumeTier string `json:"volume_tier" validate:"required,oneof=HIGH MEDIUM LOW UNKNOWN"`
}

func (HighlightRxBenefitsArgs) FunctionName() string { return FunctionHighlightRxBenefits }

// ParseFunctionCall decodes and validates the arguments for name. Unknown
// names yield ErrUnknownFunction; bad payloads yield ErrMalformedArguments.
func ParseFunctionCall(name, arguments string) (FunctionCall, error) {
	switch name {
	case FunctionCollectPharmacyInfo:
		var args CollectPharmacyInfoArgs
		if err := decodeArguments(arguments, &args); err != nil {
			return nil, err
		}
		return args, nil
	case FunctionScheduleCallback:
		var args ScheduleCallbackArgs
		if err := decodeArguments(arguments, &args); err != nil {
			return nil, err
		}
		return args, nil
	case FunctionSendFollowupEmail:
		var args SendFollowupEmailArgs
		if err := decodeArguments(arguments, &args); err != nil {
			return nil, err
		}
		return args, nil
	case FunctionHighlightRxBenefits:
		var args HighlightRxBenefitsArgs
		if err := decodeArguments(arguments, &args); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
}

func decodeArguments(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	trimStrings(dst)
	if err := validate().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	return nil
}

func trimStrings(dst any) {
	switch v := dst.(type) {
	case *CollectPharmacyInfoArgs:
		for _, s := range []*string{&v.PharmacyName, &v.ContactPerson, &v.Email, &v.Address, &v.City, &v.State} {
			*s = strings.TrimSpace(*s)
		}
	case *ScheduleCallbackArgs:
		v.PreferredTime = strings.TrimSpace(v.PreferredTime)
		v.Notes = strings.TrimSpace(v.Notes)
	case *SendFollowupEmailArgs:
		v.Email = strings.TrimSpace(v.Email)
	case *HighlightRxBenefitsArgs:
		v.VolumeTier = strings.ToUpper(strings.TrimSpace(v.VolumeTier))
	}
}

// maxRxVolume is the largest volume the lead store's INTEGER column holds.
const maxRxVolume = math.MaxInt32

// flexibleNumber accepts a JSON number or a numeric string such as "5,000".
type flexibleNumber struct {
	Value float64
	Set   bool
}

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("estimated_rx_volume: %q is not a number", s)
		}
		data = []byte(strconv.FormatFloat(f, 'f', -1, 64))
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("estimated_rx_volume: not finite")
	}
	if f > maxRxVolume {
		return fmt.Errorf("estimated_rx_volume: %g exceeds %d", f, maxRxVolume)
	}
	n.Value, n.Set = f, true
	return nil
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

// validate returns the shared validator with the notblank rule registered.
func validate() *validator.Validate {
	validateOnce.Do(func() {
		validateInst = validator.New()
		validateInst.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validateInst.RegisterValidation("notblank", validateNotBlank)
	})
	return validateInst
}

// validationDetails renders validator errors as "field: rule" strings keyed
// by JSON name.
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return out
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
