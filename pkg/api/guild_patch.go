package api

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/Jacobbrewer1/kennel/pkg/entities"
	"github.com/Jacobbrewer1/kennel/pkg/request"
)

// maxBodyBytes bounds the size of a request body.
const maxBodyBytes = 1 << 16

// decodeGuildPatch reads a guild update from body.
//
// An error is returned only when the body is not a JSON object. Fields that fail validation are
// reported in details, sorted by field. Unknown fields are ignored. ticketTypes must name at least one
// type.
func decodeGuildPatch(body io.Reader) (*entities.GuildPatch, []request.FieldError, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("error decoding body: %w", err)
	}

	patch := new(entities.GuildPatch)
	details := make([]request.FieldError, 0)
	invalid := func(field, msg string) {
		details = append(details, request.FieldError{Field: field, Message: msg})
	}

	str := func(field string, dst **string) {
		v, ok := raw[field]
		if !ok {
			return
		}
		if isNull(v) {
			invalid(field, "must not be null")
			return
		}
		s := new(string)
		if err := json.Unmarshal(v, s); err != nil {
			invalid(field, "must be a string")
			return
		}
		*dst = s
	}
	str("ticketChannelId", &patch.TicketChannelID)
	str("logsChannelId", &patch.LogsChannelID)
	str("categoryId", &patch.CategoryID)

	if v, ok := raw["enabled"]; ok {
		b := new(bool)
		switch {
		case isNull(v):
			invalid("enabled", "must not be null")
		case json.Unmarshal(v, b) != nil:
			invalid("enabled", "must be a boolean")
		default:
			patch.Enabled = b
		}
	}

	if v, ok := raw["ticketTypes"]; ok {
		var values []string
		switch {
		case isNull(v):
			invalid("ticketTypes", "must not be null")
		case json.Unmarshal(v, &values) != nil:
			invalid("ticketTypes", "must be an array of strings")
		case len(values) == 0:
			// An empty stored list enables every type.
			invalid("ticketTypes", "must enable at least one ticket type, set enabled to false to stop ticket creation")
		default:
			types := make([]entities.TicketType, 0, len(values))
			ok := true
			for i, value := range values {
				t, valid := entities.ParseTicketType(value)
				if !valid {
					invalid(fmt.Sprintf("ticketTypes[%d]", i), fmt.Sprintf("unknown ticket type %q", value))
					ok = false
					continue
				}
				types = append(types, t)
			}
			if ok {
				patch.TicketTypes = &types
			}
		}
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Field < details[j].Field
	})
	return patch, details, nil
}

func isNull(v json.RawMessage) bool {
	return string(v) == "null"
}
